package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLikePatternEscaper(t *testing.T) {
	tcases := []struct {
		name     string
		filter   string
		expected string
	}{
		{
			name:     "plain text unchanged",
			filter:   "hello",
			expected: "hello",
		},
		{
			name:     "percent matched literally",
			filter:   "50% off",
			expected: `50\% off`,
		},
		{
			name:     "underscore matched literally",
			filter:   "room_id",
			expected: `room\_id`,
		},
		{
			name:     "backslash escaped first",
			filter:   `C:\tmp_100%`,
			expected: `C:\\tmp\_100\%`,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, likePatternEscaper.Replace(tc.filter), "expected metacharacters to be escaped")
		})
	}
}
