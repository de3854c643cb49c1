// Package bridge runs Tcl commands through an embedded interpreter.
//
// # Overview
//
// A [Bridge] owns one shared interpreter instance for synchronous calls and
// asks its [Factory] for a fresh, isolated instance for every asynchronous
// call:
//
//	b, err := bridge.New(factory)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer b.Close()
//
//	// Shared state persists between synchronous calls.
//	b.CmdSync(ctx, `set x 5`)
//	res, err := b.CmdSync(ctx, `expr {$x + 1}`)
//	n, _ := res.Int() // 6
//
//	// Asynchronous calls see a pristine interpreter and leave nothing behind.
//	o := <-b.Cmd(ctx, `set y 1`)
//	if o.Err != nil {
//	    log.Fatal(o.Err)
//	}
//
// # Errors
//
// Nothing in this package panics on interpreter failure. CmdSync returns
// (*Result, error) and Cmd delivers an [Outcome]; exactly one side is set.
// Interpreter failures are [*EvalError] values carrying the interpreter's
// diagnostic. Coercions on a [Result] fail lazily with [*ConversionError].
//
// # Sharing a Bridge
//
// Construct one Bridge at startup and pass it along explicitly, or through
// a context with [NewContext] and [FromContext].
//
// The interpreter capability is supplied by the caller. See the executor
// package for a wazero-hosted tclsh and the interptest package for an
// in-memory double.
package bridge
