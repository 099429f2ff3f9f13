// Package stream provides incremental decoding of newline-delimited JSON
// transcript files. The parser is deliberately tolerant: transcript files are
// written live by agent sessions, so partial lines, blank lines, and the
// occasional malformed record are all expected input.
package stream

import (
	"encoding/json"
	"strings"
)

// Record is one decoded transcript line. It carries only the handful of
// fields needed for session-state reconstruction; the full decoded value is
// retained in Raw for callers that need more.
type Record struct {
	// Type is the record's "type" field, or "unknown" when the field is
	// absent or not a string.
	Type string

	// UUID and Timestamp are copied from the record only when they are
	// JSON strings; otherwise they are left empty.
	UUID      string
	Timestamp string

	// Content is the record's "content" field. For user and assistant
	// records without a top-level "content", it falls back to the nested
	// "message.content" field. A top-level "content" always wins.
	Content any

	// Raw is the full decoded JSON value for the line.
	Raw any
}

// Parser is a stateful JSONL decoder. Chunks fed to it may be fragmented at
// arbitrary byte boundaries, including mid-token; a line is only decoded once
// its terminating newline has arrived.
//
// The zero value is ready to use.
type Parser struct {
	buf strings.Builder
}

// NewParser returns a new empty Parser.
func NewParser() *Parser {
	return &Parser{}
}

// Feed appends chunk to the internal buffer and decodes every fully
// terminated line, returning the records in order. The trailing fragment
// after the last newline (possibly empty) is kept buffered for the next call.
// Malformed and blank lines are skipped silently; Feed never fails.
func (p *Parser) Feed(chunk string) []Record {
	p.buf.WriteString(chunk)

	data := p.buf.String()
	last := strings.LastIndexByte(data, '\n')
	if last < 0 {
		return nil
	}

	p.buf.Reset()
	p.buf.WriteString(data[last+1:])

	var records []Record
	for _, line := range strings.Split(data[:last], "\n") {
		if rec, ok := parseLine(line); ok {
			records = append(records, rec)
		}
	}
	return records
}

// Flush decodes whatever remains in the buffer as one final unterminated
// line, returning zero or one record. The buffer is cleared unconditionally:
// malformed trailing content is discarded, not retried.
func (p *Parser) Flush() []Record {
	line := p.buf.String()
	p.buf.Reset()

	if rec, ok := parseLine(line); ok {
		return []Record{rec}
	}
	return nil
}

// parseLine decodes a single line into a Record. It reports false for blank
// or malformed lines.
func parseLine(line string) (Record, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Record{}, false
	}

	var value any
	if err := json.Unmarshal([]byte(line), &value); err != nil {
		return Record{}, false
	}

	rec := Record{Type: "unknown", Raw: value}

	obj, ok := value.(map[string]any)
	if !ok {
		return rec, true
	}

	if t, ok := obj["type"].(string); ok {
		rec.Type = t
	}
	if u, ok := obj["uuid"].(string); ok {
		rec.UUID = u
	}
	if ts, ok := obj["timestamp"].(string); ok {
		rec.Timestamp = ts
	}

	if c, ok := obj["content"]; ok {
		rec.Content = c
	} else if rec.Type == "user" || rec.Type == "assistant" {
		if msg, ok := obj["message"].(map[string]any); ok {
			rec.Content = msg["content"]
		}
	}

	return rec, true
}
