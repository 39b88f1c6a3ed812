// Copyright (c) 2024 The TCG-JIT Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package backend declares the target-neutral contract a concrete host
// encoder must satisfy: the configuration knobs a front end needs
// (peephole on/off, liveness on/off, register width, argument extension,
// stack growth direction, call-argument alignment) plus
// the four target tables (constraints.TargetParser, liveness.Target,
// regalloc.Target, call.Target) a concrete backend package builds from
// them. A documented interface a backend implements, looked up at
// construction time rather than dispatched per op.
package backend

import (
	"github.com/tcgjit/tcgjit/internal/call"
	"github.com/tcgjit/tcgjit/internal/constraints"
	"github.com/tcgjit/tcgjit/internal/liveness"
	"github.com/tcgjit/tcgjit/internal/regalloc"
)

// Config carries the compile-time configuration knobs a front end may
// set. A concrete backend package (e.g. amd64) reads these to build its
// Target tables; the core itself never branches on them directly.
type Config struct {
	// EnablePeephole is carried for front ends; no component reads it. The
	// mulu2/muls2 -> muluh/mulsh narrowing in liveness pass 1 depends only
	// on liveness.Target's HasMuluh/HasMulsh, which the backend sets itself.
	EnablePeephole bool

	// EnableLiveness toggles both liveness passes. Disabling it is only
	// meaningful for debugging the allocator against an unoptimized op
	// list; no production caller should run without it.
	EnableLiveness bool

	// Width32 mirrors ir.Context.Width32: host integer registers are 32
	// bits wide, so 64-bit logical values are temp pairs.
	Width32 bool

	// BigEndian affects which half of a split 64-bit global/call-arg pair
	// is "low".
	BigEndian bool

	// ExtendArgs requests explicit ext32s/ext32u widening of sub-word call
	// arguments (call.Target.ExtendArgs).
	ExtendArgs bool

	// RequireAlign requests a dummy arg before a 64-bit call argument that
	// would otherwise land on an odd slot (call.Target.RequireAlign).
	RequireAlign bool

	// StackGrowsUp selects the sign of computed call-stack argument offsets
	// (regalloc.Target's StackGrowsUp passthrough); spill slots ignore it.
	StackGrowsUp bool
}

// Target bundles every per-host table the core's components need, each
// built once from one Config by a concrete backend package's constructor.
type Target struct {
	Constraints constraints.TargetParser
	Liveness    liveness.Target
	Call        call.Target
	RegAlloc    regalloc.Target
}
