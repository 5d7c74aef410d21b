package timer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestRealClockDifference verifies that the production clock always reports
// the true elapsed duration, whatever the tag.
func TestRealClockDifference(t *testing.T) {
	t.Parallel()

	clk := NewRealClock()
	t0 := testBase
	t1 := testBase.Add(250 * time.Millisecond)

	require.Equal(t, 250*time.Millisecond, clk.Difference("any", t0, t1))
	require.Equal(t, -250*time.Millisecond, clk.Difference("any", t1, t0))
}

// TestSimClockScriptedDifference verifies that scripted measurements win
// over real elapsed time, per tag, while unscripted tags fall through.
func TestSimClockScriptedDifference(t *testing.T) {
	t.Parallel()

	clk := NewSimClock(testBase)
	t0 := testBase
	t1 := testBase.Add(time.Second)

	clk.ScriptDifference("rtt", 5*time.Millisecond)

	require.Equal(t, 5*time.Millisecond, clk.Difference("rtt", t0, t1))
	require.Equal(t, time.Second, clk.Difference("unscripted", t0, t1))
}

// TestSimClockAdvance verifies that the simulated now moves only when
// advanced.
func TestSimClockAdvance(t *testing.T) {
	t.Parallel()

	clk := NewSimClock(testBase)
	require.Equal(t, testBase, clk.Now())

	clk.Advance(90 * time.Millisecond)
	require.Equal(t, testBase.Add(90*time.Millisecond), clk.Now())
}
