package notes

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlainText(t *testing.T) {
	tests := []struct {
		markup string
		want   string
	}{
		{"", ""},
		{"plain", "plain"},
		{"<p>Coffee at <strong>Mario's</strong></p>", "Coffee at Mario's"},
		{"<p>first</p><p>second</p>", "first second"},
		{"line<br>break", "line break"},
		{"<ul><li>one</li><li>two</li></ul>", "one two"},
		{"Tom &amp; Jerry", "Tom & Jerry"},
		{"<p><br></p>", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PlainText(tt.markup), "markup: %q", tt.markup)
	}
}

func TestIsBlank(t *testing.T) {
	assert.True(t, IsBlank("<p><br></p>"))
	assert.True(t, IsBlank("  "))
	assert.False(t, IsBlank("<p>x</p>"))
	assert.False(t, IsBlank(`<p><img src="https://example.org/whiteboard.png"></p>`))
	assert.False(t, IsBlank(`<iframe src="https://example.org/embed"></iframe>`))
	assert.False(t, IsBlank(`<video src="call.mp4"/>`))
}

func TestPreview(t *testing.T) {
	long := "<p>" + strings.Repeat("a", 100) + "</p>"
	assert.Equal(t, strings.Repeat("a", 75)+"...", Preview(long, DefaultPreviewLength))
	assert.Equal(t, "short", Preview("<em>short</em>", DefaultPreviewLength))
	assert.Equal(t, "Grü...", Preview("Grüße aus Prag", 3))
	assert.Equal(t, "whole text", Preview("whole text", 0))
}
