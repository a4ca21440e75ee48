package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSnapshot_Changed(t *testing.T) {
	s := newSnapshot()
	files := map[string]string{"b.txt": "b", "a.txt": "a"}
	assert.Equal(t, []string{"a.txt", "b.txt"}, s.Changed(files))

	s.Reset(files)
	assert.Empty(t, s.Changed(files))
	assert.Empty(t, s.Changed(map[string]string{"a.txt": "a"}))

	s.Upsert("a.txt", "a2")
	assert.Equal(t, []string{"a.txt"}, s.Changed(files))

	files["b.txt"] = "b"
	files["c.txt"] = ""
	assert.Equal(t, []string{"a.txt", "c.txt"}, s.Changed(files))

	s.Reset(nil)
	assert.Equal(t, 0, s.Len())
}

func TestSnapshot_ResetCopies(t *testing.T) {
	s := newSnapshot()
	files := map[string]string{"a.txt": "a"}
	s.Reset(files)
	files["a.txt"] = "mutated"
	assert.Equal(t, []string{"a.txt"}, s.Changed(files))
}
