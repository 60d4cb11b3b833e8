package session

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/opencode-ai/overseer/pkg/types"
)

func TestRing(t *testing.T) {
	r := NewRing(3)
	assert.Empty(t, r.Last(5))

	r.Push("a")
	r.Push("b")
	assert.Equal(t, []string{"a", "b"}, r.Last(0))

	r.Push("c")
	r.Push("d")
	assert.Equal(t, 3, r.Len())
	assert.Equal(t, []string{"b", "c", "d"}, r.Last(0))
	assert.Equal(t, []string{"c", "d"}, r.Last(2))

	r.Reset()
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, 3, r.Cap())
}

func TestRingEvictsAtCapacity(t *testing.T) {
	r := NewRing(1000)
	for i := 0; i < 1500; i++ {
		r.Push(string(rune('a' + i%26)))
	}
	assert.Equal(t, 1000, r.Len())
	last := r.Last(1)
	assert.Equal(t, string(rune('a'+1499%26)), last[0])
}

func TestBuildArgs(t *testing.T) {
	base := []string{"--print", "--output-format", "stream-json", "--verbose"}
	tests := []struct {
		name string
		info types.SessionInfo
		want []string
	}{
		{
			name: "defaults",
			info: types.SessionInfo{PermissionMode: types.PermissionDefault},
			want: append(append([]string{}, base...), "go"),
		},
		{
			name: "resume and model",
			info: types.SessionInfo{ContinuationID: "abc", Model: "opus"},
			want: append(append([]string{}, base...), "--resume", "abc", "--model", "opus", "go"),
		},
		{
			name: "plan",
			info: types.SessionInfo{PermissionMode: types.PermissionPlan},
			want: append(append([]string{}, base...), "--permission-mode", "plan", "go"),
		},
		{
			name: "accept edits adds no flag",
			info: types.SessionInfo{PermissionMode: types.PermissionAcceptEdits},
			want: append(append([]string{}, base...), "go"),
		},
		{
			name: "default adds no flag",
			info: types.SessionInfo{PermissionMode: types.PermissionDefault, ContinuationID: "abc"},
			want: append(append([]string{}, base...), "--resume", "abc", "go"),
		},
		{
			name: "bypass",
			info: types.SessionInfo{PermissionMode: types.PermissionBypass, Model: "haiku"},
			want: append(append([]string{}, base...), "--model", "haiku", "--dangerously-skip-permissions", "go"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildArgs(tt.info, "go"))
		})
	}
}
