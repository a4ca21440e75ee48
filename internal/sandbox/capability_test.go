package sandbox

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProbe(t *testing.T) {
	found := func(string) (string, error) { return "/usr/bin/x", nil }
	missing := func(name string) (string, error) {
		if name == "npm" {
			return "", errors.New("not found")
		}
		return "/usr/bin/" + name, nil
	}
	listenOK := func() error { return nil }
	listenFail := func() error { return errors.New("denied") }

	assert.True(t, probe(found, listenOK))
	assert.False(t, probe(missing, listenOK))
	assert.False(t, probe(found, listenFail))
	assert.False(t, probe(func(string) (string, error) { panic("boom") }, listenOK))
}

func TestSupported_cached(t *testing.T) {
	first := Supported()
	assert.Equal(t, first, Supported())
}
