package backup

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// numbered is one JSON line with its 1-based line number.
type numbered struct {
	n   int
	raw json.RawMessage
}

// readLines returns each non-empty line of r that is valid JSON. The
// numbers of malformed lines are returned separately.
func readLines(r io.Reader) (lines []numbered, skipped []int, err error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)
	n := 0
	for scanner.Scan() {
		n++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if !json.Valid(line) {
			skipped = append(skipped, n)
			continue
		}
		cp := make([]byte, len(line))
		copy(cp, line)
		lines = append(lines, numbered{n: n, raw: json.RawMessage(cp)})
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("scanning line %d: %w", n+1, err)
	}
	return lines, skipped, nil
}

// maxLine bounds one backed-up envelope.
const maxLine = 16 * 1024 * 1024

// writeFileAtomic writes lines to path through a temp file in the same
// directory that is synced and renamed into place.
func writeFileAtomic(path string, lines []json.RawMessage) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".intake-*.jsonl.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	fail := func(err error) error {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}

	w := bufio.NewWriter(tmp)
	for _, l := range lines {
		if _, err := w.Write(l); err != nil {
			return fail(fmt.Errorf("writing record: %w", err))
		}
		if err := w.WriteByte('\n'); err != nil {
			return fail(fmt.Errorf("writing newline: %w", err))
		}
	}
	if err := w.Flush(); err != nil {
		return fail(fmt.Errorf("flushing buffer: %w", err))
	}
	if err := tmp.Sync(); err != nil {
		return fail(fmt.Errorf("syncing temp file: %w", err))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
