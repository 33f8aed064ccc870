package badger

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/blang/semver"
	"github.com/dgraph-io/badger/v3"

	"github.com/psgs/psgs/psgs"
	"github.com/psgs/psgs/storage"
)

const (
	// DefaultVersionsToKeep is the number of versions to keep per key.  Index
	// entries are only ever replaced, so one suffices.
	DefaultVersionsToKeep = 1

	// maxPending is the number of buffered puts after which the write batch is
	// flushed.
	maxPending = 100000
)

func init() {
	ver, err := semver.Make("1.0.0")
	if err != nil {
		psgs.Errorf("Unable to make semver in badger: %v\n", err)
	}
	e := Engine{"badger", "BadgerDB", ver}
	storage.RegisterEngine(e)
}

// --- Engine Implementation ------

type Engine struct {
	name   string
	desc   string
	semver semver.Version
}

func (e Engine) GetName() string {
	return e.name
}

func (e Engine) GetDescription() string {
	return e.desc
}

func (e Engine) GetSemVer() semver.Version {
	return e.semver
}

func (e Engine) String() string {
	return fmt.Sprintf("%s [%s]", e.name, e.semver)
}

// OpenIndex returns a badger backed index, creating one at opts.Path if it
// doesn't exist and the index isn't read-only.
func (e Engine) OpenIndex(opts storage.IndexOptions) (storage.Index, error) {
	return newDB(opts)
}

func newDB(opts storage.IndexOptions) (*BadgerDB, error) {
	path := opts.Path
	if !psgs.FileExists(path) {
		if opts.ReadOnly {
			return nil, psgs.BadStatef("badger index %s doesn't exist", path)
		}
		psgs.Debugf("Index not already at path (%s). Creating directory...\n", path)
		if err := os.MkdirAll(path, 0755); err != nil {
			return nil, fmt.Errorf("can't make directory at %s: %v", path, err)
		}
	}

	order := opts.Order
	if order == nil {
		order = binary.BigEndian
	}
	badgerDB := &BadgerDB{
		directory: path,
		order:     order,
		options:   getOptions(opts),
	}

	tlog := psgs.NewTimeLog()
	bdp, err := badger.Open(*badgerDB.options)
	if err != nil {
		return nil, fmt.Errorf("can't open badger index @ %s: %v", path, err)
	}
	badgerDB.bdp = bdp
	tlog.Debugf("Opened badger index @ %s", path)
	return badgerDB, nil
}

func (db *BadgerDB) String() string {
	return fmt.Sprintf("badger @ %s", db.directory)
}

// --- The BadgerDB Implementation must satisfy a storage.Index interface ----

type BadgerDB struct {
	// Directory of index
	directory string

	order   binary.ByteOrder
	options *badger.Options
	bdp     *badger.DB

	// Puts are buffered in a write batch until Flush or a Get.
	batch   *badger.WriteBatch
	pending int
}

// Close flushes pending puts and closes the badger DB.
func (db *BadgerDB) Close() error {
	if db == nil || db.bdp == nil {
		return nil
	}
	err := db.Flush()
	if cerr := db.bdp.Close(); err == nil {
		err = cerr
	}
	psgs.Debugf("Closed badger index @ %s\n", db.directory)
	db.bdp = nil
	db.options = nil
	return err
}

// Get returns the descriptor for a node id.
func (db *BadgerDB) Get(id uint32) (storage.Descriptor, bool, error) {
	if db == nil || db.bdp == nil {
		return storage.Descriptor{}, false, fmt.Errorf("can't call Get on closed badger index")
	}
	if err := db.Flush(); err != nil {
		return storage.Descriptor{}, false, err
	}
	var v []byte
	err := db.bdp.View(func(txn *badger.Txn) error {
		item, err := txn.Get(storage.IndexKey(id))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		v, err = item.ValueCopy(nil)
		return err
	})
	if err != nil || v == nil {
		return storage.Descriptor{}, false, err
	}
	d, err := storage.DecodeDescriptor(db.order, v)
	return d, err == nil, err
}

// Put buffers a descriptor write.
func (db *BadgerDB) Put(id uint32, d storage.Descriptor) error {
	if db == nil || db.bdp == nil {
		return fmt.Errorf("can't call Put on closed badger index")
	}
	if db.options.ReadOnly {
		return psgs.Usagef("can't put into read-only badger index @ %s", db.directory)
	}
	if db.batch == nil {
		db.batch = db.bdp.NewWriteBatch()
	}
	if err := db.batch.Set(storage.IndexKey(id), d.Bytes(db.order)); err != nil {
		return fmt.Errorf("unable to write descriptor for node %d: %v", id, err)
	}
	db.pending++
	if db.pending >= maxPending {
		return db.Flush()
	}
	return nil
}

// Flush commits buffered puts.
func (db *BadgerDB) Flush() error {
	if db.batch == nil {
		return nil
	}
	err := db.batch.Flush()
	if err != nil {
		db.batch.Cancel()
	} else {
		psgs.Debugf("Flushed %d descriptors to %s\n", db.pending, db)
	}
	db.batch = nil
	db.pending = 0
	return err
}

// ForEach iterates over all entries in id order.
func (db *BadgerDB) ForEach(fn func(id uint32, d storage.Descriptor) error) error {
	if db == nil || db.bdp == nil {
		return fmt.Errorf("can't call ForEach on closed badger index")
	}
	if err := db.Flush(); err != nil {
		return err
	}
	return db.bdp.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			id, err := storage.IDFromKey(item.Key())
			if err != nil {
				return err
			}
			var d storage.Descriptor
			err = item.Value(func(v []byte) error {
				var err error
				d, err = storage.DecodeDescriptor(db.order, v)
				return err
			})
			if err != nil {
				return err
			}
			if err := fn(id, d); err != nil {
				return err
			}
		}
		return nil
	})
}
