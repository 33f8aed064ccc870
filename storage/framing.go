package storage

import (
	"encoding/binary"

	"github.com/psgs/psgs/psgs"
)

// A node record is its payload followed by one entry per adjacency:
//
//	[payload_size:4][payload, padded to 4]
//	{[model_id:4][entry_size:4][entry, padded to 4]}*
//
// Sizes exclude padding.  The descriptor of the node holds the entry count.

// AppendPayload frames a node payload.
func AppendPayload(b []byte, order binary.ByteOrder, payload []byte) []byte {
	b = psgs.AppendUint32(order, b, uint32(len(payload)))
	b = append(b, payload...)
	return pad4(b, len(payload))
}

// BeginEntry starts an adjacency entry and returns the position EndEntry needs.
// The entry content is appended to b between the two calls.
func BeginEntry(b []byte, order binary.ByteOrder, modelID uint32) ([]byte, int) {
	b = psgs.AppendUint32(order, b, modelID)
	start := len(b)
	return append(b, 0, 0, 0, 0), start
}

// EndEntry fills in the entry size and pads the entry.
func EndEntry(b []byte, order binary.ByteOrder, start int) []byte {
	size := len(b) - start - 4
	order.PutUint32(b[start:], uint32(size))
	return pad4(b, size)
}

func pad4(b []byte, n int) []byte {
	for i := n; i%4 != 0; i++ {
		b = append(b, 0)
	}
	return b
}

// WalkRecord checks the framing of the record at off and calls fn, if not nil,
// with each adjacency entry.  It returns the payload and the total record size.
func WalkRecord(data []byte, off uint64, adjCount int, order binary.ByteOrder, fn func(modelID uint32, entry []byte) error) (payload []byte, size int, err error) {
	if off > uint64(len(data)) {
		return nil, 0, psgs.Corruptedf("record offset %d beyond data of %d bytes", off, len(data))
	}
	rec := data[off:]
	pos := 0
	field := func(n int) ([]byte, error) {
		if n < 0 || len(rec)-pos < n {
			return nil, psgs.Corruptedf("record @ %d: %d bytes needed at +%d, %d available", off, n, pos, len(rec)-pos)
		}
		b := rec[pos : pos+n]
		pos += psgs.RoundUp4(n)
		if pos > len(rec) {
			pos = len(rec)
		}
		return b, nil
	}
	hdr, err := field(4)
	if err != nil {
		return nil, 0, err
	}
	if payload, err = field(int(order.Uint32(hdr))); err != nil {
		return nil, 0, err
	}
	for i := 0; i < adjCount; i++ {
		hdr, err := field(8)
		if err != nil {
			return nil, 0, err
		}
		entry, err := field(int(order.Uint32(hdr[4:8])))
		if err != nil {
			return nil, 0, err
		}
		if fn != nil {
			if err := fn(order.Uint32(hdr[0:4]), entry); err != nil {
				return nil, 0, err
			}
		}
	}
	return payload, pos, nil
}
