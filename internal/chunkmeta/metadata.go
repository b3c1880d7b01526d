// Package chunkmeta implements the durable chunk-accounting model: a bitmap
// of which fixed-size chunks of a download have been written to disk, and
// the crash-safe side-car file that persists it across restarts.
package chunkmeta

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/RoaringBitmap/roaring"
	"github.com/sirupsen/logrus"
)

// sideCarMagic tags the on-disk envelope so a foreign or truncated file is
// rejected instead of partially decoded.
var sideCarMagic = [4]byte{'R', 'D', 'L', '1'}

// TempSuffix is appended to the destination path to form the side-car path.
const TempSuffix = ".tmp"

// renameSuffix is the staging file persist() writes to before the atomic
// rename into the real side-car path.
const renameSuffix = ".tmp1"

// Metadata is the in-memory record of which chunks of the destination file
// are durably on disk. It is owned exclusively by the writer worker.
type Metadata struct {
	chunkCount int
	bitmap     *roaring.Bitmap
	chunksDone int
}

// New creates a fresh Metadata with an all-false bitmap for a file split
// into chunkCount chunks.
func New(chunkCount int) *Metadata {
	return &Metadata{
		chunkCount: chunkCount,
		bitmap:     roaring.New(),
		chunksDone: 0,
	}
}

// LoadOrNew returns the Metadata decoded from the side-car at path+TempSuffix
// if it exists, decodes cleanly, and matches chunkCount. Otherwise it returns
// a fresh Metadata; a side-car that cannot be read (e.g. absent) is skipped
// silently, while a decode failure or chunk count mismatch is logged as a
// warning (if log is non-nil). Decode failures are never fatal.
func LoadOrNew(path string, chunkCount int, log *logrus.Logger) *Metadata {
	raw, err := os.ReadFile(path + TempSuffix)
	if err != nil {
		return New(chunkCount)
	}

	meta, err := decode(raw)
	if err != nil {
		if log != nil {
			log.WithError(err).Warn("chunkmeta: could not decode side-car, starting over")
		}
		return New(chunkCount)
	}
	if meta.chunkCount != chunkCount {
		if log != nil {
			log.WithFields(logrus.Fields{
				"sidecar_chunks": meta.chunkCount,
				"expected_chunks": chunkCount,
			}).Warn("chunkmeta: side-car chunk count mismatch, starting over")
		}
		return New(chunkCount)
	}
	return meta
}

// Mark sets bitmap[i] true and increments chunksDone. The caller must not
// call Mark twice for the same index; idempotence is not enforced.
func (m *Metadata) Mark(i int) {
	m.bitmap.Add(uint32(i))
	m.chunksDone++
}

// ChunkCount returns the total number of chunks in the file.
func (m *Metadata) ChunkCount() int { return m.chunkCount }

// ChunksDone returns the cached count of durably-written chunks.
func (m *Metadata) ChunksDone() int { return m.chunksDone }

// ChunksRemaining returns chunkCount - chunksDone.
func (m *Metadata) ChunksRemaining() int { return m.chunkCount - m.chunksDone }

// Percent returns floor(100 * chunksDone / chunkCount), computed by float
// division then truncation rather than rounding.
func (m *Metadata) Percent() int {
	if m.chunkCount == 0 {
		return 100
	}
	return int(float64(m.chunksDone) / float64(m.chunkCount) * 100)
}

// IsSet reports whether chunk i is already marked done.
func (m *Metadata) IsSet(i int) bool {
	return m.bitmap.Contains(uint32(i))
}

// SnapshotBitmap produces an immutable copy of the bitmap for publication to
// range workers. Range workers never observe writes made after this call.
func (m *Metadata) SnapshotBitmap() *roaring.Bitmap {
	return m.bitmap.Clone()
}

// Persist serializes the Metadata to path+renameSuffix, then atomically
// renames it to path+TempSuffix. Rename failures are swallowed: the next
// successful chunk write will retry.
func (m *Metadata) Persist(path string) {
	tmpPath := path + renameSuffix
	realPath := path + TempSuffix

	buf := m.encode()
	if err := os.WriteFile(tmpPath, buf, 0o600); err != nil {
		return
	}
	_ = os.Rename(tmpPath, realPath)
}

// Remove deletes the side-car file. It returns an error if the file cannot
// be removed, including when it is already absent, matching the contract
// that cleanup after a successful run must find something to remove.
func Remove(path string) error {
	err := os.Remove(path + TempSuffix)
	if err != nil {
		return fmt.Errorf("chunkmeta: could not remove side-car %s%s: %w", path, TempSuffix, err)
	}
	return nil
}

func (m *Metadata) encode() []byte {
	bitmapBytes, err := m.bitmap.ToBytes()
	if err != nil {
		// ToBytes never fails in practice for an in-memory
		// roaring.Bitmap; fall back to an empty buffer so encode never
		// panics the writer.
		bitmapBytes = nil
	}

	buf := &bytes.Buffer{}
	buf.Write(sideCarMagic[:])
	_ = binary.Write(buf, binary.LittleEndian, uint32(m.chunkCount))
	_ = binary.Write(buf, binary.LittleEndian, uint32(m.chunksDone))
	_ = binary.Write(buf, binary.LittleEndian, uint32(len(bitmapBytes)))
	buf.Write(bitmapBytes)
	return buf.Bytes()
}

func decode(raw []byte) (*Metadata, error) {
	if len(raw) < 16 {
		return nil, fmt.Errorf("chunkmeta: side-car too short (%d bytes)", len(raw))
	}
	if !bytes.Equal(raw[0:4], sideCarMagic[:]) {
		return nil, fmt.Errorf("chunkmeta: bad side-car magic")
	}

	r := bytes.NewReader(raw[4:])
	var chunkCount, chunksDone, bitmapLen uint32
	if err := binary.Read(r, binary.LittleEndian, &chunkCount); err != nil {
		return nil, fmt.Errorf("chunkmeta: decode chunk count: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &chunksDone); err != nil {
		return nil, fmt.Errorf("chunkmeta: decode chunks done: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &bitmapLen); err != nil {
		return nil, fmt.Errorf("chunkmeta: decode bitmap length: %w", err)
	}

	bitmapBytes := make([]byte, bitmapLen)
	if _, err := io.ReadFull(r, bitmapBytes); err != nil {
		return nil, fmt.Errorf("chunkmeta: short read on bitmap: %w", err)
	}

	bitmap := roaring.New()
	if bitmapLen > 0 {
		if _, err := bitmap.FromBuffer(bitmapBytes); err != nil {
			return nil, fmt.Errorf("chunkmeta: decode bitmap: %w", err)
		}
	}

	if bitmap.GetCardinality() != uint64(chunksDone) {
		return nil, fmt.Errorf("chunkmeta: chunks-done mismatch: header=%d bitmap=%d", chunksDone, bitmap.GetCardinality())
	}

	return &Metadata{
		chunkCount: int(chunkCount),
		bitmap:     bitmap,
		chunksDone: int(chunksDone),
	}, nil
}
