// Copyright (c) 2024 The TCG-JIT Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package script wraps gopher-lua as an optional hook a front end may run
// once per translation block, right before register allocation, to
// observe or veto it without touching the core's Go API. Grounded on
// oisee-minz/minzc's pkg/meta.LuaEvaluator: a Go-backed API table
// registered into the *lua.LState via NewTable/SetField/SetGlobal, and
// Go<->Lua value conversion at the call boundary.
package script

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/tcgjit/tcgjit/internal/ir"
)

// Hook owns one *lua.LState and the "tcg" API table registered into it.
// Not safe for concurrent use by more than one goroutine, matching
// gopher-lua's own LState contract.
type Hook struct {
	L *lua.LState
}

// New creates a Hook with the "tcg" API table installed: tcg.log(msg) for
// a script to report through Println. The op count reaches the script
// only as before_alloc's argument.
func New() *Hook {
	L := lua.NewState()
	api := L.NewTable()
	L.SetField(api, "log", L.NewFunction(luaLog))
	L.SetGlobal("tcg", api)
	return &Hook{L: L}
}

// Close releases the underlying Lua state.
func (h *Hook) Close() { h.L.Close() }

// LoadScript compiles and runs src once, the way a front end installs its
// before_alloc callback (a plain global Lua function) before translating
// any translation block.
func (h *Hook) LoadScript(src string) error {
	return h.L.DoString(src)
}

// BeforeAlloc calls the global Lua function "before_alloc", if the loaded
// script defined one, passing the op list's current length. A truthy
// return vetoes the translation block: the caller should discard it
// instead of proceeding to Context.Gen. A script that defines no such
// function is a no-op: veto is always false.
func (h *Hook) BeforeAlloc(c *ir.Context) (veto bool, err error) {
	fn := h.L.GetGlobal("before_alloc")
	if fn.Type() != lua.LTFunction {
		return false, nil
	}

	if err := h.L.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, lua.LNumber(opCount(c))); err != nil {
		return false, fmt.Errorf("script: before_alloc: %w", err)
	}

	ret := h.L.Get(-1)
	h.L.Pop(1)
	return lua.LVAsBool(ret), nil
}

func opCount(c *ir.Context) int {
	n := 0
	for idx := c.Head(); idx != ir.Sentinel; idx = c.OpAt(idx).Next {
		n++
	}
	return n
}

func luaLog(L *lua.LState) int {
	msg := L.CheckString(1)
	fmt.Println("script:", msg)
	return 0
}
