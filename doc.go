// Copyright (c) 2024 The TCG-JIT Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package tcgjit is the public entry point over the internal TCG-style
// middle end: op-list construction (internal/ir), the constraint loader
// (internal/constraints), call lowering (internal/call), the two liveness
// passes (internal/liveness), and the linear-scan register allocator
// (internal/regalloc). A Context owns one translation block's worth of
// state; Gen drives it through liveness and allocation against a chosen
// backend.Target, emitting host machine code through a regalloc.Emitter.
package tcgjit
