package stream

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const transcript = `{"type":"system","subtype":"init","session_id":"abc"}
{"type":"assistant","message":{"content":[{"type":"text","text":"héllo\nworld"}]}}
not json at all

{"type":"assistant","message":{"content":[{"type":"tool_use","id":"t1","name":"Bash","input":{"command":"ls"}}]}}
{"type":"result","subtype":"success","session_id":"abc"}
`

func types(recs []Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Type
	}
	return out
}

func TestParseLine(t *testing.T) {
	rec, ok := ParseLine([]byte(`  {"type":"result","session_id":"xyz","subtype":"success"}  `))
	require.True(t, ok)
	assert.Equal(t, TypeResult, rec.Type)
	assert.Equal(t, "success", rec.Subtype)
	assert.Equal(t, "xyz", rec.SessionID)
	assert.Equal(t, "success", rec.Get("subtype").String())

	for _, line := range []string{"", "   ", "plain text", `{"type":`, `["a"]`, `42`} {
		_, ok := ParseLine([]byte(line))
		assert.False(t, ok, "line %q", line)
	}
}

func TestDecoder_WholeTranscript(t *testing.T) {
	var d Decoder
	recs := d.Write([]byte(transcript))

	assert.Equal(t, []string{TypeSystem, TypeAssistant, TypeAssistant, TypeResult}, types(recs))
	assert.Equal(t, 1, d.Dropped())
	assert.Equal(t, "héllo\nworld", recs[1].Get("message.content.0.text").String())
	assert.Empty(t, d.Flush())
}

// Every split of the input must yield the same records in the same order.
func TestDecoder_ChunkBoundaryInsensitive(t *testing.T) {
	var whole Decoder
	want := whole.Write([]byte(transcript))

	data := []byte(transcript)
	for split := 1; split < len(data); split++ {
		var d Decoder
		got := d.Write(data[:split])
		got = append(got, d.Write(data[split:])...)
		require.Equal(t, len(want), len(got), "split at %d", split)
		for i := range want {
			assert.JSONEq(t, string(want[i].Raw), string(got[i].Raw), "split at %d", split)
		}
	}

	// Byte-at-a-time, including through the multi-byte rune.
	var d Decoder
	var got []Record
	for i := range data {
		got = append(got, d.Write(data[i:i+1])...)
	}
	assert.Equal(t, types(want), types(got))
}

func TestDecoder_FlushTail(t *testing.T) {
	var d Decoder
	recs := d.Write([]byte(`{"type":"result","session_id":"s"}` + "\n" + `{"type":"assistant"`))
	assert.Equal(t, []string{TypeResult}, types(recs))

	recs = d.Write([]byte(`,"message":{"content":[]}}`))
	assert.Empty(t, recs)

	recs = d.Flush()
	assert.Equal(t, []string{TypeAssistant}, types(recs))
	assert.Empty(t, d.Flush())
}

func TestLineBuffer(t *testing.T) {
	var b LineBuffer
	assert.Empty(t, b.Feed([]byte("abc")))
	assert.Equal(t, 3, b.Pending())

	lines := b.Feed([]byte("def\n\nxy"))
	require.Len(t, lines, 2)
	assert.Equal(t, "abcdef", string(lines[0]))
	assert.Equal(t, "", string(lines[1]))
	assert.Equal(t, "xy", string(b.Flush()))
	assert.Equal(t, 0, b.Pending())
}

func TestDecoder_LargeLine(t *testing.T) {
	text := strings.Repeat("x", 1<<20)
	line := `{"type":"assistant","message":{"content":[{"type":"text","text":"` + text + `"}]}}` + "\n"

	var d Decoder
	var recs []Record
	for i := 0; i < len(line); i += 4096 {
		end := i + 4096
		if end > len(line) {
			end = len(line)
		}
		recs = append(recs, d.Write([]byte(line[i:end]))...)
	}
	require.Len(t, recs, 1)
	assert.Len(t, recs[0].Get("message.content.0.text").String(), 1<<20)
}
