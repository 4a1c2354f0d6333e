package concurrent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCounter_TrackResolve(t *testing.T) {
	c := NewCounter()
	assert.Equal(t, 0, c.Get())

	c.Track("a")
	c.Track("b")
	c.Track("a")
	assert.Equal(t, 2, c.Get())
	assert.ElementsMatch(t, []string{"a", "b"}, c.Values())

	assert.True(t, c.Resolve("a"))
	assert.False(t, c.Resolve("a"))
	assert.Equal(t, 1, c.Get())
	assert.Equal(t, []string{"b"}, c.Values())
}
