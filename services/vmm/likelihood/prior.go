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
	"sort"
	"strings"
)

// ErrUnknownPrior indicates a prior name that is not registered.
var ErrUnknownPrior = errors.New("unknown model size prior")

// Prior returns log p(newSize) - log p(oldSize) for a prior over model sizes.
// Sizes are counted in parameter vectors and are always at least 1.
type Prior func(oldSize, newSize int) float64

// Uniform gives every model size the same weight.
func Uniform(oldSize, newSize int) float64 {
	return 0
}

// Inverse weights a model of size k by 1/k, so p(k) ∝ 1/k and the ratio is
// log(oldSize) - log(newSize). Growing the model lowers the score.
func Inverse(oldSize, newSize int) float64 {
	return math.Log(float64(oldSize)) - math.Log(float64(newSize))
}

// Poisson weights a model of size k by 1/k!.
func Poisson(oldSize, newSize int) float64 {
	l := 0.0
	if newSize < oldSize {
		for x := newSize + 1; x <= oldSize; x++ {
			l += math.Log(float64(x))
		}
		return l
	}
	for x := oldSize + 1; x <= newSize; x++ {
		l -= math.Log(float64(x))
	}
	return l
}

var priors = map[string]Prior{
	"uniform": Uniform,
	"inverse": Inverse,
	"poisson": Poisson,
}

// PriorByName returns the registered prior with the given name.
func PriorByName(name string) (Prior, error) {
	p, ok := priors[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %s)", ErrUnknownPrior, name, strings.Join(PriorNames(), ", "))
	}
	return p, nil
}

// PriorNames lists the registered priors in sorted order.
func PriorNames() []string {
	names := make([]string, 0, len(priors))
	for name := range priors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
