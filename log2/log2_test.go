package log2

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelFilter(t *testing.T) {
	t.Parallel()

	b := bytes.NewBuffer(nil)
	l := NewWriter(b, LInfo)
	require.NotNil(t, l)
	l.SetFlags(0)

	l.Debugf("hidden %d", 1)
	l.Infof("shown %d", 2)
	l.Errorf("also shown %d", 3)

	out := b.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown 2")
	assert.Contains(t, out, "error: also shown 3")

	l.SetLevel(LDebug)
	l.Debugf("now visible")
	assert.Contains(t, b.String(), "debug: now visible")
}

func TestNilSafe(t *testing.T) {
	t.Parallel()

	var l *Log
	assert.False(t, l.Enabled(LError))
	l.SetLevel(LDebug)
	l.SetFlags(0)
	l.SetPrefix("x")
	l.Errorf("to nowhere")
	assert.Nil(t, l.Clone(LDebug))
}

func TestPrefix(t *testing.T) {
	t.Parallel()

	b := bytes.NewBuffer(nil)
	l := NewWriter(b, LDebug)
	l.SetFlags(0)
	l.SetPrefix("sub: ")
	l.Infof("hello")
	assert.True(t, strings.HasPrefix(b.String(), "sub: "), "out=%q", b.String())
}
