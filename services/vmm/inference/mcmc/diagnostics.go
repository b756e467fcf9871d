// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package mcmc

import "fmt"

// Diagnostics counts the moves of one sampler run.
type Diagnostics struct {
	Moves         int `json:"moves" yaml:"moves"`
	Skips         int `json:"skips" yaml:"skips"`
	Births        int `json:"births" yaml:"births"`
	BirthAttempts int `json:"birth_attempts" yaml:"birth_attempts"`
	Deaths        int `json:"deaths" yaml:"deaths"`
	DeathAttempts int `json:"death_attempts" yaml:"death_attempts"`
}

// BirthRate returns the fraction of accepted birth proposals.
func (d Diagnostics) BirthRate() float64 {
	return rate(d.Births, d.BirthAttempts)
}

// DeathRate returns the fraction of accepted death proposals.
func (d Diagnostics) DeathRate() float64 {
	return rate(d.Deaths, d.DeathAttempts)
}

// AcceptanceRate returns the fraction of accepted birth and death proposals
// together. Skips are not proposals.
func (d Diagnostics) AcceptanceRate() float64 {
	return rate(d.Births+d.Deaths, d.BirthAttempts+d.DeathAttempts)
}

func rate(accepted, attempts int) float64 {
	if attempts == 0 {
		return 0
	}
	return float64(accepted) / float64(attempts)
}

// String formats the counts one move kind per line.
func (d Diagnostics) String() string {
	return fmt.Sprintf("births: %d/%d (%.0f%%)\ndeaths: %d/%d (%.0f%%)\nskips:  %d",
		d.Births, d.BirthAttempts, 100*d.BirthRate(),
		d.Deaths, d.DeathAttempts, 100*d.DeathRate(),
		d.Skips)
}
