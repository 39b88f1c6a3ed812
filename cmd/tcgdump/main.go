// Copyright (c) 2024 The TCG-JIT Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command tcgdump builds one of a fixed set of sample translation blocks,
// runs it through the real amd64 backend, and prints the resulting host
// instruction bytes as hex (with -debug, the allocator's trace goes to the
// debug logger as well). It exists to inspect register-allocation decisions without
// embedding the core in a full front end.
package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tcgjit/tcgjit"
	"github.com/tcgjit/tcgjit/internal/backend"
	"github.com/tcgjit/tcgjit/internal/backend/amd64"
	"github.com/tcgjit/tcgjit/internal/debug"
	"github.com/tcgjit/tcgjit/internal/ir"
	"github.com/tcgjit/tcgjit/internal/script"
)

var (
	demoName   string
	debugTrace bool
	width32    bool
	hookFile   string
)

var rootCmd = &cobra.Command{
	Use:   "tcgdump",
	Short: "Assemble and dump a sample translation block",
	Long: `tcgdump builds one of a fixed set of sample translation blocks against
the amd64 backend and prints the resulting machine code as hex, along with
an optional allocator trace and an optional Lua pre-allocation hook.

DEMOS:
  constmov   constant materialized straight into a mov
  deadadd    an add whose result is never read
  callclobber a helper call with a temp that must survive it
  movsuppress a mov whose source dies at that op

EXAMPLES:
  tcgdump --demo constmov
  tcgdump --demo callclobber --debug
  tcgdump --demo deadadd --hook veto.lua`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run()
	},
}

func init() {
	rootCmd.Flags().StringVarP(&demoName, "demo", "d", "constmov", "sample translation block to build (constmov, deadadd, callclobber, movsuppress)")
	rootCmd.Flags().BoolVar(&debugTrace, "debug", false, "enable the allocator's structured trace log")
	rootCmd.Flags().BoolVar(&width32, "width32", false, "target a 32-bit-host register width")
	rootCmd.Flags().StringVar(&hookFile, "hook", "", "Lua script defining before_alloc(opcount) to run before allocation")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run() error {
	debug.Enabled = debugTrace

	cfg := backend.Config{EnableLiveness: true, Width32: width32}
	c := tcgjit.NewContext(cfg, amd64.NewTarget(cfg), ir.DefaultLimits)
	c.FuncStart()

	build, ok := demos[demoName]
	if !ok {
		return fmt.Errorf("unknown -demo %q", demoName)
	}
	build(c)

	if hookFile != "" {
		src, err := os.ReadFile(hookFile)
		if err != nil {
			return fmt.Errorf("read hook: %w", err)
		}
		h := script.New()
		defer h.Close()
		if err := h.LoadScript(string(src)); err != nil {
			return fmt.Errorf("load hook: %w", err)
		}
		veto, err := h.BeforeAlloc(c.Context)
		if err != nil {
			return fmt.Errorf("run hook: %w", err)
		}
		if veto {
			fmt.Println("hook vetoed this translation block; nothing generated")
			return nil
		}
	}

	emit := amd64.NewEmitter(make([]byte, 0, 4096))
	if err := c.Gen(emit); err != nil {
		return err
	}

	fmt.Println(hex.EncodeToString(emit.Bytes()))
	return nil
}
