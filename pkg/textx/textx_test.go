package textx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "lowercases and trims", in: "  Great Product!  ", want: "great product!"},
		{name: "strips urls", in: "check https://x.com/a?b=1 out", want: "check out"},
		{name: "url only becomes empty", in: "https://x.com", want: ""},
		{name: "collapses whitespace", in: "a\t\tb\n\nc", want: "a b c"},
		{name: "empty stays empty", in: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.in))
		})
	}
}

func TestFirstLine(t *testing.T) {
	assert.Equal(t, "hello", FirstLine("\n\nhello\nworld"))
	assert.Equal(t, "", FirstLine("\n \n"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "ab", Truncate("abcd", 2))
	assert.Equal(t, "hél", Truncate("héllo", 3))
}
