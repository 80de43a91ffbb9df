package game

import (
	"crypto/rand"
	"encoding/binary"
)

// Drawer picks the round result server-side. The weighting is business
// policy handed in from config; the engine only requires that a result is
// drawn exactly once per round.
type Drawer struct {
	weights [3]int
	randInt func(n int) int
}

func NewDrawer(weights [3]int) *Drawer {
	return &Drawer{
		weights: weights,
		randInt: secureRandInt,
	}
}

// Draw returns red, green or violet according to the configured weights.
func (d *Drawer) Draw() Color {
	total := d.weights[0] + d.weights[1] + d.weights[2]
	v := d.randInt(total)

	if v < d.weights[0] {
		return ColorRed
	}
	if v < d.weights[0]+d.weights[1] {
		return ColorGreen
	}
	return ColorViolet
}

// secureRandInt returns a uniform value in [0, n) from crypto/rand.
func secureRandInt(n int) int {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand never fails on supported platforms
		panic(err)
	}
	return int(binary.BigEndian.Uint64(buf[:]) % uint64(n))
}
