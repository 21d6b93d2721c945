package instance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetID(t *testing.T) {
	t.Setenv("DYNO", "")
	t.Setenv("HOSTNAME", "")
	assert.Equal(t, "local", GetID())

	t.Setenv("HOSTNAME", "pod-7")
	assert.Equal(t, "pod-7", GetID())

	t.Setenv("DYNO", "web.1")
	assert.Equal(t, "web.1", GetID())
}
