// Copyright (c) 2024 The TCG-JIT Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"github.com/tcgjit/tcgjit"
	"github.com/tcgjit/tcgjit/internal/backend/amd64"
	"github.com/tcgjit/tcgjit/internal/call"
	"github.com/tcgjit/tcgjit/internal/ir"
)

// demos mirrors the end-to-end scenarios exercised by the root package's
// integration tests, kept here as small, independently runnable builders
// so -hook and -debug can be tried against each by hand.
var demos = map[string]func(*tcgjit.Context){
	"constmov": func(c *tcgjit.Context) {
		a := c.ConstI32(42)
		b := c.TempNew(ir.Type32, false)
		c.Mov(b, a)
		c.St(b, int32(amd64.RegFramePtr), 0)
	},
	"deadadd": func(c *tcgjit.Context) {
		x := c.ConstI32(1)
		y := c.ConstI32(2)
		dead := c.TempNew(ir.Type32, false)
		c.Add(dead, x, y)
	},
	"callclobber": func(c *tcgjit.Context) {
		survivor := c.ConstI32(7)
		arg := c.ConstI32(9)
		ret := c.TempNew(ir.Type32, false)
		c.Call(true, call.Arg{Lo: int32(ret.Index)}, 0x1000, 0, []call.Arg{{Lo: int32(arg.Index)}})
		sum := c.TempNew(ir.Type32, false)
		c.Add(sum, survivor, ret)
		c.St(sum, int32(amd64.RegFramePtr), 0)
	},
	"movsuppress": func(c *tcgjit.Context) {
		src := c.ConstI32(5)
		dst := c.TempNew(ir.Type32, false)
		c.Mov(dst, src)
		c.St(dst, int32(amd64.RegFramePtr), 0)
	},
}
