// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command bvmm infers variable-order Markov models from integer-coded data.
//
// Usage:
//
//	bvmm enumerate --data seq.txt --alphabet 2 --max-height 3
//	bvmm optimize  --data seq.txt --runs 20 --prior poisson
//	bvmm sample    --data edges.txt --kind network --samples 50000
//
// Sequence input has one sequence per line, symbols separated by spaces or
// commas. Network input has one "src dst" pair per line. Lines starting with
// # are ignored.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/AleutianAI/bvmm/pkg/ux"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		ux.NewPrinter(os.Stderr).Error(err.Error())
		stop()
		os.Exit(1)
	}
}
