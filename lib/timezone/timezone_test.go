package timezone

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLocation(t *testing.T) {
	require.NotNil(t, Location)
	require.Equal(t, "Europe/Amsterdam", Location.String())
}

func TestDate(t *testing.T) {
	d := Date(2026, time.February, 27)
	require.Equal(t, 2026, d.Year())
	require.Equal(t, time.February, d.Month())
	require.Equal(t, 27, d.Day())
	require.Equal(t, 0, d.Hour())
	require.Equal(t, Location, d.Location())
}

func TestNowIsLocal(t *testing.T) {
	now := Now()
	require.Equal(t, Location, now.Location())
}
