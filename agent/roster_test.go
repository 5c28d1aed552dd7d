package agent

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRoster(t *testing.T) {
	t.Parallel()

	r := DefaultRoster()
	assert.Equal(t, 23, r.Len())
	assert.Equal(t, "atlas", r.Overseer())
	assert.True(t, r.Has("felix"))
	assert.False(t, r.Has("nobody"))

	p, ok := r.Lookup("sol")
	require.True(t, ok)
	assert.Equal(t, "testing", p.Specialty)
	assert.Contains(t, p.SystemPrompt(), "sol")

	known := r.Known()
	assert.Len(t, known, 23)
	assert.True(t, known["atlas"])
}

func TestNewRosterValidation(t *testing.T) {
	t.Parallel()

	_, err := NewRoster(nil, nil)
	assert.Error(t, err)

	_, err = NewRoster([]Persona{{Name: "a"}, {Name: "a"}}, nil)
	assert.Error(t, err)

	_, err = NewRoster([]Persona{{Name: "a"}, {Name: ""}}, nil)
	assert.Error(t, err)
}

func TestFallbackForExcludesPrimary(t *testing.T) {
	t.Parallel()

	r := DefaultRoster()
	fb := r.FallbackFor("backend", "felix")
	assert.Equal(t, []string{"nova", "rhea"}, fb)
	assert.Nil(t, r.FallbackFor("no-such-specialty", "felix"))
}

func TestLoadRoster(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "roster.yaml")
	data := `
personas:
  - name: ada
    role: the overseer
    specialty: planning
  - name: bob
    role: a backend engineer
    specialty: backend
fallbacks:
  backend: [bob]
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	r, err := LoadRoster(path)
	require.NoError(t, err)
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, "ada", r.Overseer())
	assert.Equal(t, []string{"bob"}, r.FallbackFor("backend", "ada"))

	_, err = LoadRoster(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestBoardTransitions(t *testing.T) {
	t.Parallel()

	b := NewBoard(DefaultRoster())

	b.SetBusy("felix", "task-1")
	s, ok := b.Get("felix")
	require.True(t, ok)
	assert.Equal(t, StateBusy, s.State)
	assert.Equal(t, "task-1", s.CurrentTaskID)

	b.SetIdle("felix", true, 2*time.Second)
	s, _ = b.Get("felix")
	assert.Equal(t, StateIdle, s.State)
	assert.Empty(t, s.CurrentTaskID)
	assert.Equal(t, 1, s.CompletedTasks)
	assert.Equal(t, 2*time.Second, s.AvgDuration)

	b.SetIdle("felix", false, 0)
	s, _ = b.Get("felix")
	assert.Equal(t, 1, s.FailedTasks)

	// Unknown agents are ignored, not created.
	b.SetBusy("ghost", "task-2")
	_, ok = b.Get("ghost")
	assert.False(t, ok)

	snap := b.Snapshot()
	assert.Len(t, snap, 23)
}
