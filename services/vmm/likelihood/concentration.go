// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package likelihood

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrConcentrationLength indicates a concentration vector whose length
	// differs from the alphabet size.
	ErrConcentrationLength = errors.New("concentration length does not match alphabet size")

	// ErrInvalidConcentration indicates a non-positive or non-finite entry.
	ErrInvalidConcentration = errors.New("concentration entries must be positive and finite")
)

// Concentration is the parameter vector of the symmetric Dirichlet prior put
// on every next-symbol distribution. It is immutable.
type Concentration struct {
	alpha       []float64
	sum         float64
	lgammaSum   float64 // sum of lnΓ(α_i)
	lgammaOfSum float64 // lnΓ(Σα)
}

// NewConcentration validates alpha for an alphabet of the given size. A nil
// alpha means one for every symbol.
func NewConcentration(alphabetSize int, alpha []float64) (*Concentration, error) {
	if alpha == nil {
		alpha = make([]float64, alphabetSize)
		for i := range alpha {
			alpha[i] = 1
		}
	}
	if len(alpha) != alphabetSize {
		return nil, fmt.Errorf("%w: got %d entries for %d symbols", ErrConcentrationLength, len(alpha), alphabetSize)
	}

	c := &Concentration{alpha: make([]float64, len(alpha))}
	for i, a := range alpha {
		if !(a > 0) || math.IsInf(a, 0) {
			return nil, fmt.Errorf("%w: entry %d is %v", ErrInvalidConcentration, i, a)
		}
		c.alpha[i] = a
		c.sum += a
		c.lgammaSum += lgamma(a)
	}
	c.lgammaOfSum = lgamma(c.sum)
	return c, nil
}

// Len returns the alphabet size.
func (c *Concentration) Len() int { return len(c.alpha) }

// Values returns a copy of the vector.
func (c *Concentration) Values() []float64 {
	out := make([]float64, len(c.alpha))
	copy(out, c.alpha)
	return out
}

// Sum returns Σα.
func (c *Concentration) Sum() float64 { return c.sum }

// logBeta returns ln B(counts + α) = Σ lnΓ(counts_i + α_i) - lnΓ(Σcounts + Σα).
func (c *Concentration) logBeta(counts []float64) float64 {
	l, total := 0.0, 0.0
	for i, n := range counts {
		l += lgamma(n + c.alpha[i])
		total += n
	}
	return l - lgamma(total+c.sum)
}

// logBetaPrior returns ln B(α).
func (c *Concentration) logBetaPrior() float64 {
	return c.lgammaSum - c.lgammaOfSum
}

func lgamma(x float64) float64 {
	v, _ := math.Lgamma(x)
	return v
}
