// Package executor hosts a WASI build of tclsh in a WebAssembly runtime
// and exposes each running instance as a bridge.Interp.
//
// # Overview
//
// The executor manages WASM module compilation, caching and instances.
// Every [Session] is one tclsh instance with its own global namespace,
// driven by an embedded request loop over stdin/stdout.
//
// # Basic Usage
//
//	mod, err := tclsh.Open("tclsh.wasm")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	exec, err := executor.New(executor.WithPrecompile(mod))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer exec.Close()
//
//	session, err := exec.NewSession(ctx, mod, executor.WithLibrary("/usr/share/tcl8.6"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer session.Close()
//
//	session.Eval(ctx, `set x 42`)
//	v, _ := session.Eval(ctx, `set x`) // "42"
//
// # Bridge Integration
//
// [Executor.Factory] adapts sessions to bridge.Factory:
//
//	b, err := bridge.New(exec.Factory(mod, executor.WithLibrary(lib)))
//
// # Output
//
// Text a script writes to stdout with puts is carried out of band and
// delivered to the writer set with [WithOutput]; it never mixes with
// command results.
package executor
