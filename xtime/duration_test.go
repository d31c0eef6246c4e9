package xtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in     string
		exp    time.Duration
		expErr bool
	}{
		{"30s", 30 * time.Second, false},
		{"500ms", 500 * time.Millisecond, false},
		{"2m", 2 * time.Minute, false},
		{"1h30m", 90 * time.Minute, false},
		{"10d", 10 * 24 * time.Hour, false},
		{"-1.5w", -252 * time.Hour, false},
		{"3Y4M5d", 3*365*24*time.Hour + 4*30*24*time.Hour + 5*24*time.Hour, false},
		{"10q", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			dur, err := ParseDuration(tt.in)
			if tt.expErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.exp, dur)
		})
	}
}

func TestFormatDuration(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "30s", FormatDuration(30*time.Second, time.Second))
	assert.Equal(t, "2m", FormatDuration(2*time.Minute, time.Minute))
	assert.Equal(t, "3d", FormatDuration(72*time.Hour, 24*time.Hour))
	assert.Equal(t, "500ms", FormatDuration(500*time.Millisecond, time.Second))
}
