package clip

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/streamwatch/streamwatch/errors"
)

// TestValidateRange is §8 property 6: start<0 OR dur<=0 OR start+dur>max
// raises InvalidRange; all valid (start, dur) succeed.
func TestValidateRange(t *testing.T) {
	const max = 240.0

	cases := []struct {
		name         string
		start, dur   float64
		wantErr      bool
	}{
		{"negative start", -1, 30, true},
		{"zero duration", 10, 0, true},
		{"negative duration", 10, -5, true},
		{"exceeds max", 230, 20, true},
		{"exactly at max", 210, 30, false},
		{"valid mid-range", 10, 30, false},
		{"zero start valid", 0, 240, false},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := ValidateRange(c.start, c.dur, max)
			if c.wantErr {
				require.ErrorIs(t, err, errors.ErrInvalidRange)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestFormatTime(t *testing.T) {
	require.Equal(t, "00:00:10.500", formatTime(10.5))
	require.Equal(t, "00:01:00.000", formatTime(60))
}

func TestParseOutTime(t *testing.T) {
	secs, ok := parseOutTime("out_time=00:01:30.123456")
	require.True(t, ok)
	require.Equal(t, 90.0, secs)

	_, ok = parseOutTime("frame=120")
	require.False(t, ok)
}
