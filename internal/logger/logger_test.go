package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewWithWriter_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, 4)

	l.Info("hidden")
	l.Warn("shown", "key", "value")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "key=value")
}

func TestLogger_Named(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, 0).Named("scheduler")

	l.Info("tick")

	assert.Contains(t, buf.String(), "component=scheduler")
}
