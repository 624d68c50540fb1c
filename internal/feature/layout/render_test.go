package layout

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRenderKnownConfig(t *testing.T) {
	// 12 = 0b001_100: clock gets 4, notifications gets 1, the rest 0
	got := Render(12)
	want := strings.Join([]string{
		"clock: Priority 4",
		"notifications: Priority 1",
		"activity: Priority 0",
		"weather: Priority 0",
		"calendar: Priority 0",
	}, "\n")
	require.Equal(t, want, got)
}

func TestRenderZero(t *testing.T) {
	got := Render(0)
	require.Equal(t, 5, len(strings.Split(got, "\n")))
	for _, line := range strings.Split(got, "\n") {
		require.True(t, strings.HasSuffix(line, ": Priority 0"), line)
	}
}

func TestRenderMasksToThreeBits(t *testing.T) {
	// all bits set: every component reads 7
	got := Render(^uint64(0))
	for _, line := range strings.Split(got, "\n") {
		require.True(t, strings.HasSuffix(line, ": Priority 7"), line)
	}
}

func TestRenderDeterministic(t *testing.T) {
	require.Equal(t, Render(123456), Render(123456))
}
