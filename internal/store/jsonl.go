package store

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// maxLineSize bounds a single JSONL line; a 768-dim embedding is ~16KB.
const maxLineSize = 4 * 1024 * 1024

// DefaultMemoryPath returns the default store location: ~/.mnemo/memory.jsonl
func DefaultMemoryPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".mnemo", "memory.jsonl"), nil
}

// LoadResult is the outcome of reading a store file.
type LoadResult struct {
	Records []Record
	Skipped int // malformed lines dropped during decode
}

// Load reads the whole collection from path. A missing file yields an empty
// collection. Lines that do not parse as a record are skipped.
func Load(path string) (LoadResult, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return LoadResult{}, nil
	}
	if err != nil {
		return LoadResult{}, fmt.Errorf("open memory file: %w", err)
	}
	defer f.Close()

	res, err := Decode(f)
	if err != nil {
		return LoadResult{}, fmt.Errorf("read memory file %s: %w", path, err)
	}
	return res, nil
}

// Decode parses line-delimited JSON records from r. Lines longer than
// maxLineSize are skipped like any other malformed line.
func Decode(r io.Reader) (LoadResult, error) {
	var res LoadResult
	br := bufio.NewReaderSize(r, 64*1024)
	for {
		line, oversized, err := readLine(br)
		switch trimmed := bytes.TrimSpace(line); {
		case oversized:
			res.Skipped++
		case len(trimmed) == 0:
		default:
			if rec, ok := decodeLine(trimmed); ok {
				res.Records = append(res.Records, rec)
			} else {
				res.Skipped++
			}
		}
		if errors.Is(err, io.EOF) {
			return res, nil
		}
		if err != nil {
			return res, err
		}
	}
}

// readLine returns the next line without its newline. Once a line exceeds
// maxLineSize the rest of it is discarded and oversized is set.
func readLine(br *bufio.Reader) (line []byte, oversized bool, err error) {
	for {
		chunk, readErr := br.ReadSlice('\n')
		if !oversized {
			if len(line)+len(chunk) > maxLineSize+1 {
				oversized = true
				line = nil
			} else {
				line = append(line, chunk...)
			}
		}
		if errors.Is(readErr, bufio.ErrBufferFull) {
			continue
		}
		return bytes.TrimSuffix(line, []byte("\n")), oversized, readErr
	}
}

func decodeLine(line []byte) (Record, bool) {
	var rec Record
	if err := json.Unmarshal(line, &rec); err != nil {
		return Record{}, false
	}
	if strings.TrimSpace(rec.ID) == "" {
		return Record{}, false
	}
	rec.Tags = NormalizeTags(rec.Tags)
	if len(rec.Embedding) == 0 {
		rec.Embedding = nil
	}
	return rec, true
}

// Encode writes records as line-delimited JSON.
func Encode(w io.Writer, records []Record) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for i := range records {
		rec := records[i]
		if rec.Tags == nil {
			rec.Tags = []string{}
		}
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("encode record %s: %w", rec.ID, err)
		}
	}
	return nil
}

// Save rewrites the whole file from records. The parent directory is created
// if needed; data goes to a temp file first and is renamed into place.
func Save(path string, records []Record) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create memory dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op after a successful rename

	w := bufio.NewWriter(tmp)
	if err := Encode(w, records); err != nil {
		tmp.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush memory file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync memory file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close memory file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replace memory file: %w", err)
	}
	return nil
}
