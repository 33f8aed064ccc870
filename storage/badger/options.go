package badger

import (
	"github.com/dgraph-io/badger/v3"

	"github.com/psgs/psgs/psgs"
	"github.com/psgs/psgs/storage"
)

// Low memory settings.  Badger caps the value threshold at 15% of the memtable
// size, and descriptors are far below either threshold.
const (
	lowMemTableSize      = 1 << 20
	lowMemValueThreshold = 1 << 10
	lowMemValueLogSize   = 1 << 20
	lowMemCacheSize      = 1 << 20
)

func getOptions(opts storage.IndexOptions) *badger.Options {
	bopts := badger.DefaultOptions(opts.Path).
		WithLogger(badgerLogger{}).
		WithNumVersionsToKeep(DefaultVersionsToKeep).
		WithReadOnly(opts.ReadOnly).
		WithSyncWrites(opts.SyncWrites)

	if opts.LowMemory {
		psgs.Infof("Using Badger with low memory options.\n")
		bopts = bopts.
			WithNumMemtables(1).
			WithMemTableSize(lowMemTableSize).
			WithValueThreshold(lowMemValueThreshold).
			WithValueLogFileSize(lowMemValueLogSize).
			WithBlockCacheSize(lowMemCacheSize).
			WithIndexCacheSize(lowMemCacheSize)
	}
	return &bopts
}

// badgerLogger routes badger's internal messages to our logger.  Badger is
// chatty at info level, so info goes to debug.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...interface{}) {
	psgs.Errorf("badger: "+format, args...)
}

func (badgerLogger) Warningf(format string, args ...interface{}) {
	psgs.Warningf("badger: "+format, args...)
}

func (badgerLogger) Infof(format string, args ...interface{}) {
	psgs.Debugf("badger: "+format, args...)
}

func (badgerLogger) Debugf(format string, args ...interface{}) {
	psgs.Debugf("badger: "+format, args...)
}
