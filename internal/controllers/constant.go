package controllers

import "github.com/BalterLoadTesting/balter/internal/core"

// Constant implements a flat TPS ceiling, backing Scenario.TPS.
type Constant struct {
	tps float64
}

// NewConstant returns a Controller that always proposes tps.
func NewConstant(tps float64) *Constant {
	return &Constant{tps: tps}
}

func (c *Constant) InitialTPS() float64            { return c.tps }
func (c *Constant) Limit(_ core.Snapshot) float64  { return c.tps }
func (c *Constant) IsStable() bool                 { return true }
