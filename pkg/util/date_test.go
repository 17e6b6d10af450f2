package util

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseTime(t *testing.T) {
	want := time.Date(2024, 10, 10, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2024-10-10", want},
		{"2024-10-10T00:00:00Z", want},
		{"2024-10-10 00:00:00", want},
		{"10/10/2024", want},
		{strconv.FormatInt(want.Unix(), 10), want},
		{"2024-10-10T02:00:00+02:00", want},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseTime(tt.in)
			assert.True(t, ok)
			assert.True(t, tt.want.Equal(got), "got %v", got)
		})
	}

	_, ok := ParseTime("yesterday")
	assert.False(t, ok)
}

func TestParseTimeDefault(t *testing.T) {
	def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	assert.Equal(t, def, ParseTimeDefault("", def))
}

func TestParseFloat(t *testing.T) {
	v, ok := ParseFloat(" 101.25 ")
	assert.True(t, ok)
	assert.Equal(t, 101.25, v)

	for _, s := range []string{"", "null", "NaN", "abc"} {
		_, ok := ParseFloat(s)
		assert.False(t, ok, s)
	}
}
