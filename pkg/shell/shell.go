// Package shell is the interactive front end: a line-oriented command
// loop wrapping the simulation lifecycle. Commands are case-insensitive
// and whitespace-trimmed.
package shell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minichain/minichain/pkg/monitoring"
	"github.com/minichain/minichain/pkg/sim"
)

// SnapshotPrefix names the files the save command writes
const SnapshotPrefix = "state"

// Shell reads commands and drives one simulation
type Shell struct {
	in         io.Reader
	out        io.Writer
	simulation *sim.Simulation
	log        *monitoring.Logger
}

// New creates a shell over the given streams and simulation
func New(in io.Reader, out io.Writer, simulation *sim.Simulation, log *monitoring.Logger) *Shell {
	return &Shell{in: in, out: out, simulation: simulation, log: log}
}

// Run processes commands until exit or EOF. It returns the process
// exit code so the caller owns os.Exit.
func (s *Shell) Run(ctx context.Context) int {
	scanner := bufio.NewScanner(s.in)
	for scanner.Scan() {
		switch command := strings.ToLower(strings.TrimSpace(scanner.Text())); command {
		case "":
			// Blank lines are not worth a warning

		case "help":
			s.printCommands()

		case "sim start":
			if err := s.simulation.Start(ctx); err == sim.ErrAlreadyRunning {
				s.log.Warn("simulation has already begun")
			} else if err != nil {
				s.log.Errorf("failed to start simulation: %v", err)
				return 1
			}

		case "save":
			path, err := s.simulation.Save(SnapshotPrefix)
			if err != nil {
				s.log.Errorf("save failed: %v", err)
				continue
			}
			s.log.Infof("state saved to %s", path)

		case "exit":
			s.simulation.Stop()
			return 0

		default:
			s.log.Warnf("invalid command: %q", command)
		}
	}

	// EOF on stdin behaves like exit
	s.simulation.Stop()
	return 0
}

func (s *Shell) printCommands() {
	fmt.Fprintln(s.out, "--> help: displays the available commands")
	fmt.Fprintln(s.out, "--> sim start: begins the three-component blockchain simulation")
	fmt.Fprintln(s.out, "--> save: writes the current state to a timestamped JSON snapshot")
	fmt.Fprintln(s.out, "--> exit: stops the simulation and exits with code 0")
}
