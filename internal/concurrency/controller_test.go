package concurrency

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestControllerScalesUpTowardGoal(t *testing.T) {
	c := New(10, nil)

	res := c.Evaluate(50, 10, 1000)
	assert.Equal(t, StateWorking, res.State)
	assert.Greater(t, res.NewConcurrency, 10)
}

func TestControllerDeclaresStableWithinTolerance(t *testing.T) {
	c := New(100, nil)
	res := c.Evaluate(980, 100, 1000)
	assert.Equal(t, StateStable, res.State)
	assert.Equal(t, 100, res.NewConcurrency)
}

func TestControllerDetectsTpsLimited(t *testing.T) {
	c := New(10, nil)

	// throughput plateaus at ~500 no matter how much concurrency grows.
	c.Evaluate(495, 10, 5000)
	c.Evaluate(498, 20, 5000)
	c.Evaluate(500, 40, 5000)
	res := c.Evaluate(499, 80, 5000)

	assert.Equal(t, StateTPSLimited, res.State)
	assert.InDelta(t, 500, res.TPSCap, 5)
}

func TestControllerResetsWhenGoalDropsBelowCap(t *testing.T) {
	c := New(10, nil)
	c.Evaluate(495, 10, 5000)
	c.Evaluate(498, 20, 5000)
	c.Evaluate(500, 40, 5000)
	res := c.Evaluate(499, 80, 5000)
	assert.Equal(t, StateTPSLimited, res.State)

	c.NotifyGoalTPS(100)
	assert.Equal(t, StateWorking, c.State())
}

func TestControllerShrinksWhenGoalFarBelowAchievable(t *testing.T) {
	c := New(100, nil)
	newConc, shrunk := c.OnGoalLowered(50, 400)
	assert.True(t, shrunk)
	assert.Equal(t, 50, newConc)
}

func TestControllerDoesNotShrinkWhenClose(t *testing.T) {
	c := New(100, nil)
	newConc, shrunk := c.OnGoalLowered(300, 400)
	assert.False(t, shrunk)
	assert.Equal(t, 100, newConc)
}

func TestGrowDoublesUnderCeiling(t *testing.T) {
	assert.Equal(t, 20, grow(10))
	assert.Equal(t, 2500, grow(2000))
}
