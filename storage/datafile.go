package storage

import (
	"bufio"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/psgs/psgs/psgs"
)

// DataFile is a read-only memory mapping of a graph data file.
type DataFile struct {
	path string
	f    *os.File
	data []byte
}

// OpenDataFile maps the file at path.  An empty file is valid and maps nothing.
func OpenDataFile(path string) (*DataFile, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, psgs.BadStatef("data file %s doesn't exist", path)
		}
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	df := &DataFile{path: path, f: f}
	if size := fi.Size(); size > 0 {
		df.data, err = unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("can't map data file %s: %v", path, err)
		}
	}
	return df, nil
}

// Bytes returns the whole mapping.  It is invalid after Close.
func (df *DataFile) Bytes() []byte {
	return df.data
}

// Size returns the file size in bytes.
func (df *DataFile) Size() int64 {
	return int64(len(df.data))
}

// Slice returns n bytes at offset off.
func (df *DataFile) Slice(off uint64, n int) ([]byte, error) {
	if n < 0 || off > uint64(len(df.data)) || uint64(len(df.data))-off < uint64(n) {
		return nil, psgs.Corruptedf("%d bytes @ %d out of data file %s of %d bytes", n, off, df.path, len(df.data))
	}
	return df.data[off : off+uint64(n)], nil
}

// Close unmaps the file and closes it.
func (df *DataFile) Close() error {
	var err error
	if df.data != nil {
		err = unix.Munmap(df.data)
		df.data = nil
	}
	if df.f != nil {
		if cerr := df.f.Close(); err == nil {
			err = cerr
		}
		df.f = nil
	}
	return err
}

// DefaultWriteBufferSize is the buffer size of a DataWriter when none is given.
const DefaultWriteBufferSize = 1 * psgs.Mega

// DataWriter appends records to a new data file and tracks the current offset.
type DataWriter struct {
	path   string
	f      *os.File
	w      *bufio.Writer
	offset uint64
	sync   bool
}

// CreateDataWriter creates or truncates the file at path.
func CreateDataWriter(path string, bufSize int, syncWrites bool) (*DataWriter, error) {
	if bufSize <= 0 {
		bufSize = DefaultWriteBufferSize
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &DataWriter{path: path, f: f, w: bufio.NewWriterSize(f, bufSize), sync: syncWrites}, nil
}

// Offset is where the next write lands.
func (w *DataWriter) Offset() uint64 {
	return w.offset
}

// Write appends b and returns the offset it was written at.
func (w *DataWriter) Write(b []byte) (uint64, error) {
	off := w.offset
	if off+uint64(len(b)) > psgs.MaxOffset {
		return off, fmt.Errorf("data file %s would exceed maximum offset %d", w.path, uint64(psgs.MaxOffset))
	}
	if _, err := w.w.Write(b); err != nil {
		return off, err
	}
	w.offset += uint64(len(b))
	return off, nil
}

// Close flushes buffered data, syncs if requested, and closes the file.
func (w *DataWriter) Close() error {
	err := w.w.Flush()
	if err == nil && w.sync {
		err = w.f.Sync()
	}
	if cerr := w.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// Abort closes the file and removes it.
func (w *DataWriter) Abort() {
	w.f.Close()
	os.Remove(w.path)
}
