// Package wal provides an indexing journal: every document accepted for
// indexing is appended with its mapping version stamp before it reaches a
// segment, so unflushed documents can be replayed after a crash with the
// stamp they were originally assigned.
package wal

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/golang/snappy"
)

// WAL is an append-only journal of accepted documents.
type WAL struct {
	dir        string
	segment    *os.File
	segmentID  uint64
	offset     int64
	maxSegSize int64
	currentLSN uint64
	mu         sync.Mutex
}

// Entry is a single journal entry: one accepted document and the stamp
// it was assigned at parse time.
type Entry struct {
	LSN       uint64 `json:"lsn"`
	Stamp     int64  `json:"stamp"`
	Source    []byte `json:"source"`
	Timestamp int64  `json:"timestamp"`
}

// NewWAL creates a WAL instance, creating the directory if needed and
// resuming from the highest existing segment.
func NewWAL(dir string, maxSegSize int64) (*WAL, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("wal: failed to create directory: %w", err)
	}

	w := &WAL{dir: dir, maxSegSize: maxSegSize}
	if err := w.findLastSegment(); err != nil {
		return nil, err
	}
	if err := w.openSegment(); err != nil {
		return nil, err
	}
	return w, nil
}

// findLastSegment finds the highest segmentID from existing journal files
// and restores the LSN counter from its last entry.
func (w *WAL) findLastSegment() error {
	files, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("wal: failed to read directory: %w", err)
	}

	var lastSegmentID uint64
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		var segmentID uint64
		if _, err := fmt.Sscanf(file.Name(), "wal_%016x.log", &segmentID); err == nil && segmentID >= lastSegmentID {
			lastSegmentID = segmentID
		}
	}
	w.segmentID = lastSegmentID

	path := w.segmentPath(lastSegmentID)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	entries, err := readSegment(path)
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		w.currentLSN = entries[len(entries)-1].LSN
	}
	return nil
}

func (w *WAL) segmentPath(id uint64) string {
	return filepath.Join(w.dir, fmt.Sprintf("wal_%016x.log", id))
}

// openSegment opens the current segment file for writing.
func (w *WAL) openSegment() error {
	file, err := os.OpenFile(w.segmentPath(w.segmentID), os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("wal: failed to open segment file: %w", err)
	}

	offset, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		file.Close()
		return fmt.Errorf("wal: failed to seek segment: %w", err)
	}

	w.segment = file
	w.offset = offset
	return nil
}

// Append adds an entry to the journal and returns its LSN. The entry is
// framed as [length:4][crc32:4][snappy(json):length].
func (w *WAL) Append(entry *Entry) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.currentLSN++
	entry.LSN = w.currentLSN

	raw, err := json.Marshal(entry)
	if err != nil {
		return 0, fmt.Errorf("wal: failed to serialize entry: %w", err)
	}
	payload := snappy.Encode(nil, raw)
	crc := crc32.ChecksumIEEE(payload)

	if w.offset >= w.maxSegSize && w.maxSegSize > 0 {
		if err := w.rotate(); err != nil {
			return 0, err
		}
	}

	if err := binary.Write(w.segment, binary.LittleEndian, uint32(len(payload))); err != nil {
		return 0, fmt.Errorf("wal: failed to write length: %w", err)
	}
	if err := binary.Write(w.segment, binary.LittleEndian, crc); err != nil {
		return 0, fmt.Errorf("wal: failed to write CRC: %w", err)
	}
	n, err := w.segment.Write(payload)
	if err != nil {
		return 0, fmt.Errorf("wal: failed to write payload: %w", err)
	}
	w.offset += int64(8 + n)

	return w.currentLSN, nil
}

// Sync flushes the current segment to stable storage.
func (w *WAL) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.segment.Sync(); err != nil {
		return fmt.Errorf("wal: failed to sync segment: %w", err)
	}
	return nil
}

// Close closes the current segment file.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.segment.Close()
}

// CurrentLSN returns the LSN of the most recently appended entry.
func (w *WAL) CurrentLSN() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.currentLSN
}

func (w *WAL) rotate() error {
	if err := w.segment.Sync(); err != nil {
		return fmt.Errorf("wal: failed to sync before rotate: %w", err)
	}
	if err := w.segment.Close(); err != nil {
		return fmt.Errorf("wal: failed to close before rotate: %w", err)
	}
	w.segmentID++
	return w.openSegment()
}

// ReadAll returns every entry across all journal segments in LSN order.
// A corrupt frame ends the read of its segment; entries before it are
// still returned.
func (w *WAL) ReadAll() ([]*Entry, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	files, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, fmt.Errorf("wal: failed to read directory: %w", err)
	}

	var paths []string
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		var segmentID uint64
		if _, err := fmt.Sscanf(file.Name(), "wal_%016x.log", &segmentID); err == nil {
			paths = append(paths, filepath.Join(w.dir, file.Name()))
		}
	}
	sort.Strings(paths)

	var entries []*Entry
	for _, path := range paths {
		segEntries, err := readSegment(path)
		if err != nil {
			return nil, err
		}
		entries = append(entries, segEntries...)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].LSN < entries[j].LSN })
	return entries, nil
}

// readSegment reads all intact entries from one segment file. Frames
// with a CRC mismatch or a truncated payload end the read.
func readSegment(path string) ([]*Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("wal: failed to open segment %s: %w", path, err)
	}
	defer file.Close()

	var entries []*Entry
	for {
		var length, crc uint32
		if err := binary.Read(file, binary.LittleEndian, &length); err != nil {
			break
		}
		if err := binary.Read(file, binary.LittleEndian, &crc); err != nil {
			break
		}

		payload := make([]byte, length)
		if _, err := io.ReadFull(file, payload); err != nil {
			break
		}
		if crc32.ChecksumIEEE(payload) != crc {
			break
		}

		raw, err := snappy.Decode(nil, payload)
		if err != nil {
			break
		}
		var entry Entry
		if err := json.Unmarshal(raw, &entry); err != nil {
			continue
		}
		entries = append(entries, &entry)
	}
	return entries, nil
}
