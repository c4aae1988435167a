package ui

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/honganh1206/stargazer/preview"
)

func TestPublishKeepsLatest(t *testing.T) {
	c := NewController()

	for i := 0; i < 25; i++ {
		c.Publish(&State{Status: "frame", Previews: make([]preview.Preview, i)})
	}

	var last *State
	for len(c.Updates) > 0 {
		last = <-c.Subscribe()
	}
	if assert.NotNil(t, last) {
		assert.Len(t, last.Previews, 24)
	}
}

func TestFormatPreview(t *testing.T) {
	main, secondary := FormatPreview(preview.Preview{TeamID: "A", Title: "Orion", UnreadCount: 3, RecentMessage: "hi"})
	assert.Contains(t, main, "Orion")
	assert.Contains(t, main, "(3)")
	assert.Equal(t, "hi", secondary)

	main, secondary = FormatPreview(preview.Preview{TeamID: "B"})
	assert.Contains(t, main, "B")
	assert.False(t, strings.Contains(main, UnreadSymbol))
	assert.Contains(t, secondary, "no messages")
}

func TestFormatStatus(t *testing.T) {
	assert.Contains(t, FormatStatus("subscribed", nil), SuccessSymbol)
	assert.Contains(t, FormatStatus("idle", errors.New("boom")), "boom")
}
