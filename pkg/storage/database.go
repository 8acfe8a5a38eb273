package storage

import (
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

// Database wraps LevelDB for the block archive
type Database struct {
	db *leveldb.DB
}

// OpenDatabase opens or creates a LevelDB database at path
func OpenDatabase(path string) (*Database, error) {
	opts := &opt.Options{
		Compression: opt.SnappyCompression,
	}

	db, err := leveldb.OpenFile(path, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "storage: opening %s", path)
	}

	return &Database{db: db}, nil
}

// Close closes the database
func (db *Database) Close() error {
	return db.db.Close()
}

// Get retrieves the value for key; a missing key returns (nil, nil)
func (db *Database) Get(key []byte) ([]byte, error) {
	value, err := db.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, nil
	}
	return value, err
}

// Put stores a key-value pair
func (db *Database) Put(key, value []byte) error {
	return db.db.Put(key, value, nil)
}

// Has reports whether key exists
func (db *Database) Has(key []byte) (bool, error) {
	return db.db.Has(key, nil)
}

// Batch accumulates writes for one atomic commit
type Batch struct {
	batch *leveldb.Batch
	db    *Database
}

// NewBatch creates an empty batch
func (db *Database) NewBatch() *Batch {
	return &Batch{batch: new(leveldb.Batch), db: db}
}

// Put adds a write to the batch
func (b *Batch) Put(key, value []byte) {
	b.batch.Put(key, value)
}

// Write commits the batch atomically
func (b *Batch) Write() error {
	return b.db.db.Write(b.batch, nil)
}
