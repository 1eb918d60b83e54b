package handlers

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncatePreview(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"short passes through", "hello", 100, "hello"},
		{"exactly max passes through", strings.Repeat("x", 100), 100, strings.Repeat("x", 100)},
		{"long ascii cut at max", strings.Repeat("x", 150), 100, strings.Repeat("x", 100) + "..."},
		{"empty", "", 100, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, truncatePreview(tt.in, tt.max))
		})
	}
}

func TestTruncatePreviewKeepsRunesWhole(t *testing.T) {
	// "é" is two bytes; the leading "a" shifts every rune so the 100-byte cut
	// lands mid-sequence and must back up to the rune start.
	in := "a" + strings.Repeat("é", 60)

	out := truncatePreview(in, 100)

	assert.True(t, utf8.ValidString(out), "truncation must not split a rune")
	assert.True(t, strings.HasSuffix(out, "..."))
	assert.Equal(t, "a"+strings.Repeat("é", 49)+"...", out)

	// Four-byte runes back up further.
	emoji := strings.Repeat("🙂", 30) // 120 bytes
	out = truncatePreview(emoji, 101)
	assert.True(t, utf8.ValidString(out))
	assert.Equal(t, strings.Repeat("🙂", 25)+"...", out)
}
