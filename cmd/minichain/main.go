package main

import (
	"context"
	"os"

	flags "github.com/jessevdk/go-flags"

	"github.com/minichain/minichain/pkg/chain"
	"github.com/minichain/minichain/pkg/config"
	"github.com/minichain/minichain/pkg/monitoring"
	"github.com/minichain/minichain/pkg/shell"
	"github.com/minichain/minichain/pkg/sim"
	"github.com/minichain/minichain/pkg/storage"
)

type options struct {
	Config   string `short:"c" long:"config" description:"Path to the simulation config JSON; built-in defaults when omitted"`
	DataDir  string `short:"d" long:"datadir" description:"Directory for the block archive; archiving is off when omitted"`
	LogLevel string `short:"l" long:"loglevel" default:"info" description:"Log level: debug, info, warn, error"`
}

func main() {
	os.Exit(run())
}

// run keeps deferred cleanups ahead of the process exit
func run() int {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		// go-flags already printed the message (and --help is not an error)
		if flags.WroteHelp(err) {
			return 0
		}
		return 1
	}

	level, err := monitoring.ParseLevel(opts.LogLevel)
	if err != nil {
		monitoring.Errorf("%v", err)
		return 1
	}
	monitoring.SetGlobalLevel(level)
	log := monitoring.NewLogger(level)

	cfg := config.Default()
	if opts.Config != "" {
		cfg, err = config.Load(opts.Config)
		if err != nil {
			log.Errorf("%v", err)
			return 1
		}
	}

	simOpts := []sim.Option{sim.WithLogger(log)}
	if opts.DataDir != "" {
		archive, err := storage.OpenArchive(opts.DataDir)
		if err != nil {
			log.Errorf("%v", err)
			return 1
		}
		defer archive.Close()
		simOpts = append(simOpts, sim.WithArchive(archive))

		// Report what a previous run left behind
		if blocks, err := archive.LoadChain(); err != nil {
			log.Errorf("%v", err)
			return 1
		} else if len(blocks) > 0 {
			if _, err := chain.NewFromBlocks(blocks); err != nil {
				log.Errorf("archived chain fails linkage verification: %v", err)
				return 1
			}
			log.Infof("block archive holds a verified chain of %d blocks", len(blocks))
		}
	}

	simulation, err := sim.New(cfg, simOpts...)
	if err != nil {
		log.Errorf("%v", err)
		return 1
	}

	log.Info("welcome to the minimalist blockchain")
	log.Info("for the list of supported commands enter: 'help'")

	return shell.New(os.Stdin, os.Stdout, simulation, log).Run(context.Background())
}
