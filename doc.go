// Package tclbridge runs Tcl commands from Go on a WebAssembly-hosted
// tclsh.
//
// # Overview
//
// A [bridge.Bridge] owns one shared interpreter whose state persists
// between synchronous commands, and creates a fresh isolated interpreter
// for every asynchronous command. Interpreter instances come from a
// [bridge.Factory]; the [executor] package provides one backed by a WASI
// build of tclsh running in wazero.
//
// # Basic Usage
//
//	mod, _ := tclsh.Open("tclsh.wasm")
//	exec, _ := executor.New(executor.WithDiskCache())
//	defer exec.Close()
//
//	b, _ := bridge.New(exec.Factory(mod, executor.WithLibrary("/usr/share/tcl8.6")))
//	defer b.Close()
//
//	// Shared interpreter, state persists
//	b.CmdSync(ctx, `set x 5`)
//	res, _ := b.CmdSync(ctx, `expr {$x + 1}`)
//	n, _ := res.Int() // 6
//
//	// Isolated interpreter per call
//	o := <-b.Cmd(ctx, `info tclversion`)
//	fmt.Println(o.Result)
//
// See the [bridge], [executor], [tclsh] and [interptest] packages for
// detailed API documentation.
package tclbridge
