package capture

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOutTimeRegexParsesProgressLine(t *testing.T) {
	m := outTimeRE.FindStringSubmatch("out_time=00:02:00.000000")
	require.NotNil(t, m)
	require.Equal(t, "00", m[1])
	require.Equal(t, "02", m[2])
	require.Equal(t, "00", m[3])
}

func TestOutTimeRegexIgnoresOtherLines(t *testing.T) {
	require.Nil(t, outTimeRE.FindStringSubmatch("frame=  120 fps=30"))
}
