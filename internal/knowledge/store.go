// Package knowledge answers "what do we know that is relevant to this
// utterance" from a flat `key | value` file.
package knowledge

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

const separator = "|"

type Entry struct {
	Key   string
	Value string
}

// Parse reads one `key | value` pair per line. Surrounding whitespace is
// trimmed, only the first separator splits, blank lines and lines without a
// separator or key are skipped. A repeated key overwrites the earlier value
// but keeps its original position.
func Parse(r io.Reader) ([]Entry, error) {
	var (
		entries []Entry
		index   = make(map[string]int)
	)

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		k, v, ok := strings.Cut(line, separator)
		if !ok {
			continue
		}
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if k == "" {
			continue
		}
		if i, dup := index[k]; dup {
			entries[i].Value = v
			continue
		}
		index[k] = len(entries)
		entries = append(entries, Entry{Key: k, Value: v})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("knowledge: scan: %w", err)
	}
	return entries, nil
}

// Load parses the file at path.
func Load(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Parse(f)
}
