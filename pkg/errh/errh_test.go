package errh

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSilentHandlerCounts(t *testing.T) {
	h := NewSilentHandler()
	h.Message(LevelWarning, Landmark{}, "careful")
	h.Message(LevelError, Landmark{File: "a.click", Line: 3}, "bad config")
	h.Message(LevelError, Landmark{}, "bad config 2")

	assert.Equal(t, 2, h.Count(LevelError))
	assert.Equal(t, 3, h.Count(LevelWarning))
	assert.Equal(t, 0, h.Count(LevelFatal))
}

func TestBailHandlerBailsAtLevel(t *testing.T) {
	inner := NewSilentHandler()
	bailed := false
	b := NewBailHandler(inner, LevelError)
	b.Bail = func(msg string) { bailed = true }

	b.Message(LevelWarning, Landmark{}, "just a warning")
	assert.False(t, bailed)

	b.Message(LevelError, Landmark{}, "fatal enough")
	assert.True(t, bailed)
}

func TestContextHandlerEmitsOncePerLandmark(t *testing.T) {
	inner := NewSilentHandler()
	c := NewContextHandler(inner, "while configuring queue1")
	lm := Landmark{File: "q.click", Line: 10}

	c.Message(LevelError, lm, "first")
	c.Message(LevelError, lm, "second")
	c.Message(LevelError, Landmark{File: "q.click", Line: 11}, "third")

	// One context line + 2 messages for lm, one context line + 1 message
	// for the second landmark = 5 total LevelInfo+LevelError counts.
	require.Equal(t, 3, inner.Count(LevelError))
	require.Equal(t, 2, inner.Count(LevelInfo))
}

func TestLandmarkHandlerSubstitutesDefault(t *testing.T) {
	inner := NewSilentHandler()
	def := Landmark{File: "default.click", Line: 1}
	l := NewLandmarkHandler(inner, def)

	l.Message(LevelWarning, Landmark{}, "no landmark given")
	assert.Equal(t, 1, inner.Count(LevelWarning))
}

func TestLandmarkRendersAnnotation(t *testing.T) {
	lm := Landmark{File: "a.click", Line: 42}
	assert.Equal(t, "{l:a.click:42}", lm.String())
	assert.True(t, Landmark{}.IsEmpty())
}
