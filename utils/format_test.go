package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0s"},
		{-time.Second, "0s"},
		{999 * time.Millisecond, "0s"},
		{42 * time.Second, "42s"},
		{60 * time.Second, "1m 0s"},
		{3*time.Minute + 7*time.Second, "3m 7s"},
		{time.Hour, "1h 0m"},
		{2*time.Hour + 15*time.Minute + 59*time.Second, "2h 15m"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDuration(tt.in), tt.in.String())
	}
}
