package controllers

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompositeTakesSmallestProposal(t *testing.T) {
	c := NewComposite(NewConstant(500), NewConstant(200), NewConstant(1000))
	assert.Equal(t, float64(200), c.InitialTPS())
}

func TestCompositeEmptyIsUnbounded(t *testing.T) {
	c := NewComposite()
	assert.True(t, math.IsInf(c.InitialTPS(), 1))
}

func TestCompositeAllStableWithAlwaysStableControllers(t *testing.T) {
	c := NewComposite(NewConstant(500), NewLatency(0, 0.99, 100))
	assert.True(t, c.AllStable())
}

func TestCompositeAllStableRespectsErrorRateController(t *testing.T) {
	erc := NewErrorRate(0.03, 100)
	c := NewComposite(erc)
	assert.False(t, c.AllStable())

	erc.Limit(snapshot(1000, 0.10))
	erc.Limit(snapshot(1000, 0.02))
	erc.Limit(snapshot(1000, 0.02))
	erc.Limit(snapshot(1000, 0.02))
	assert.True(t, c.AllStable())
}
