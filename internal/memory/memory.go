package memory

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Record is one remembered exchange.
type Record struct {
	Summary  string
	Response string
}

// Log is an append-only conversation memory file, one
// "summary / response" record per line. It seeds the dialogue history
// across restarts.
type Log struct {
	path string
}

func New(path string) *Log {
	return &Log{path: path}
}

// Append writes one record. Newlines inside either field are flattened
// so the one-record-per-line format holds.
func (l *Log) Append(summary, response string) error {
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = fmt.Fprintf(f, "%s / %s\n", flatten(summary), flatten(response))
	return err
}

// Load reads back at most limit records, keeping the newest. A missing
// file is an empty memory, not an error.
func (l *Log) Load(limit int) ([]Record, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var records []Record
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		summary, response, found := strings.Cut(line, " / ")
		if !found {
			continue
		}
		records = append(records, Record{Summary: summary, Response: response})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}
	return records, nil
}

func flatten(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	return strings.TrimSpace(s)
}
