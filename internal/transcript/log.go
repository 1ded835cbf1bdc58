package transcript

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// maxLogLine bounds a single structured log line. Agent output can arrive in
// large bursts, so the scanner default of 64 KiB is too small.
const maxLogLine = 4 << 20

// ReadLog parses a structured session log. Lines that fail to decode are
// skipped; a log truncated by a crash still yields every complete entry.
func ReadLog(r io.Reader) ([]Entry, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLogLine)

	var entries []Entry
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries, scanner.Err()
}

// ReadLogFile opens path and parses it with ReadLog. A missing file yields no
// entries and no error.
func ReadLogFile(path string) ([]Entry, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open structured log: %w", err)
	}
	defer f.Close()
	return ReadLog(f)
}

// ReadRawFile reads a raw capture file and returns its cleaned transcript.
func ReadRawFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read raw capture: %w", err)
	}
	return Clean(string(data)), nil
}
