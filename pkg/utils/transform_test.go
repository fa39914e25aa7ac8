package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeSymbol(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"btc", "BTC"},
		{" eth ", "ETH"},
		{"$sol", "SOL"},
		{"$ADA", "ADA"},
		{"", ""},
		{"$", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeSymbol(tt.in), "input %q", tt.in)
	}
}

func TestDedup(t *testing.T) {
	in := []string{"http://a/", "http://a", "http://b", "http://b"}
	assert.Equal(t, []string{"http://a", "http://b"}, Dedup(in))
}
