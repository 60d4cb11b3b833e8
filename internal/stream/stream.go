// Package stream decodes the line-delimited JSON emitted by the claude CLI in
// stream-json mode.
package stream

import (
	"bytes"
	"encoding/json"

	"github.com/tidwall/gjson"
)

// Record types emitted by the CLI.
const (
	TypeAssistant = "assistant"
	TypeUser      = "user"
	TypeResult    = "result"
	TypeSystem    = "system"
)

// Record is one parsed JSON line.
type Record struct {
	Type      string
	Subtype   string
	SessionID string
	Raw       json.RawMessage
}

// Get returns the value at a gjson path inside the record.
func (r Record) Get(path string) gjson.Result {
	return gjson.GetBytes(r.Raw, path)
}

// ParseLine parses one line. ok is false for blank lines and anything that is
// not a JSON object.
func ParseLine(line []byte) (rec Record, ok bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 || line[0] != '{' || !gjson.ValidBytes(line) {
		return Record{}, false
	}
	fields := gjson.GetManyBytes(line, "type", "subtype", "session_id")
	raw := make(json.RawMessage, len(line))
	copy(raw, line)
	return Record{
		Type:      fields[0].String(),
		Subtype:   fields[1].String(),
		SessionID: fields[2].String(),
		Raw:       raw,
	}, true
}

// LineBuffer splits a byte stream on '\n', carrying an incomplete tail across
// chunks.
type LineBuffer struct {
	carry []byte
	// scanned is the prefix of carry known to contain no newline.
	scanned int
}

// Feed appends chunk and returns every line it completed, without the newline.
func (b *LineBuffer) Feed(chunk []byte) [][]byte {
	b.carry = append(b.carry, chunk...)

	var lines [][]byte
	for {
		i := bytes.IndexByte(b.carry[b.scanned:], '\n')
		if i < 0 {
			b.scanned = len(b.carry)
			break
		}
		i += b.scanned
		line := make([]byte, i)
		copy(line, b.carry[:i])
		lines = append(lines, line)
		b.carry = b.carry[i+1:]
		b.scanned = 0
	}
	if len(b.carry) == 0 {
		b.carry = nil
	}
	return lines
}

// Flush returns the pending tail and resets the buffer.
func (b *LineBuffer) Flush() []byte {
	tail := b.carry
	b.carry = nil
	b.scanned = 0
	return tail
}

// Pending reports how many bytes are waiting for a newline.
func (b *LineBuffer) Pending() int {
	return len(b.carry)
}

// Decoder turns arbitrary chunks into records. Not safe for concurrent use.
type Decoder struct {
	lines   LineBuffer
	dropped int
}

// Write feeds a chunk and returns the records it completed, in line order.
func (d *Decoder) Write(chunk []byte) []Record {
	return d.parse(d.lines.Feed(chunk))
}

// Flush parses whatever is left in the carry buffer as a final line.
func (d *Decoder) Flush() []Record {
	tail := d.lines.Flush()
	if tail == nil {
		return nil
	}
	return d.parse([][]byte{tail})
}

// Dropped returns the number of non-blank lines that were not JSON.
func (d *Decoder) Dropped() int {
	return d.dropped
}

func (d *Decoder) parse(lines [][]byte) []Record {
	var out []Record
	for _, line := range lines {
		rec, ok := ParseLine(line)
		if !ok {
			if len(bytes.TrimSpace(line)) > 0 {
				d.dropped++
			}
			continue
		}
		out = append(out, rec)
	}
	return out
}
