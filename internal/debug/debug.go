// Copyright (c) 2024 The TCG-JIT Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package debug is the op-list/allocator trace a translation pipeline
// needs but is otherwise silent about: an off-by-default, depth-tracked
// structured log, built on logrus so a front end's log aggregator can
// filter on fields (op index, opcode, register) rather than scrape a bare
// Printf.
package debug

import (
	"github.com/sirupsen/logrus"
)

// Enabled is a runtime toggle, off by default, so a production embedder
// pays no logging cost unless it opts in.
var Enabled = false

// Log is the shared logger every traced component writes through. A front
// end may replace it (e.g. to redirect to its own logrus.Logger) before
// calling into the core.
var Log = logrus.New()

func init() {
	Log.SetLevel(logrus.DebugLevel)
}

// Tracer carries a nesting depth: each run of the allocator's per-op
// trace owns one, so concurrent Contexts never share mutable depth state.
type Tracer struct {
	depth int
}

// Enter logs msg at the current depth (as a logrus field, not literal
// indentation — a structured log line survives being shipped through a
// Lua hook or a CLI pipe, unlike leading spaces) and increases depth for
// nested calls.
func (t *Tracer) Enter(msg string, fields logrus.Fields) {
	if !Enabled {
		return
	}
	if fields == nil {
		fields = logrus.Fields{}
	}
	fields["depth"] = t.depth
	Log.WithFields(fields).Debug(msg)
	t.depth++
}

// Exit decreases depth, the closing half of Enter.
func (t *Tracer) Exit() {
	if !Enabled {
		return
	}
	if t.depth > 0 {
		t.depth--
	}
}
