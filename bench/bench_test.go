// Package bench compares the cost of shared and isolated execution.
//
// Run with: go test -v -run=Test ./bench/
// Benchmarks: go test -bench=. -benchtime=3x ./bench/
//
// Interpreter benchmarks need TCLBRIDGE_TCLSH pointing at a WASI tclsh
// (and TCLBRIDGE_TCL_LIBRARY at its script library if the build needs it).
package bench

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/caffeineduck/tclbridge/bridge"
	"github.com/caffeineduck/tclbridge/executor"
	"github.com/caffeineduck/tclbridge/interptest"
	"github.com/caffeineduck/tclbridge/tclsh"
	"github.com/rs/zerolog"
)

const script = "set total 0; incr total 42"

type benchTB interface {
	Helper()
	Skip(args ...any)
	Fatal(args ...any)
	Cleanup(func())
}

// wasmFactory returns a factory for the WASI tclsh named by
// TCLBRIDGE_TCLSH, skipping when it is unset.
func wasmFactory(tb benchTB) bridge.Factory {
	tb.Helper()

	path := os.Getenv("TCLBRIDGE_TCLSH")
	if path == "" {
		tb.Skip("TCLBRIDGE_TCLSH not set")
	}
	mod, err := tclsh.Open(path)
	if err != nil {
		tb.Fatal(err)
	}

	ex, err := executor.New(executor.WithPrecompile(mod), executor.WithLogger(zerolog.Nop()))
	if err != nil {
		tb.Fatal(err)
	}
	tb.Cleanup(func() { ex.Close() })

	var opts []executor.SessionOption
	if lib := os.Getenv("TCLBRIDGE_TCL_LIBRARY"); lib != "" {
		opts = append(opts, executor.WithLibrary(lib))
	}
	return ex.Factory(mod, opts...)
}

func newBridge(tb benchTB, f bridge.Factory) *bridge.Bridge {
	tb.Helper()

	br, err := bridge.New(f, bridge.WithLogger(zerolog.Nop()))
	if err != nil {
		tb.Fatal(err)
	}
	tb.Cleanup(func() { br.Close() })
	return br
}

// --- Bridge overhead (in-memory interpreter) ---

func BenchmarkBridge_Sync(b *testing.B) {
	br := newBridge(b, interptest.NewFactory())
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := br.CmdSync(ctx, script); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkBridge_Async(b *testing.B) {
	br := newBridge(b, interptest.NewFactory())
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if o := <-br.Cmd(ctx, script); o.Err != nil {
			b.Fatal(o.Err)
		}
	}
}

// --- WASM tclsh ---

func BenchmarkWasm_Sync(b *testing.B) {
	br := newBridge(b, wasmFactory(b))
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := br.CmdSync(ctx, script); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkWasm_Async(b *testing.B) {
	br := newBridge(b, wasmFactory(b))
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if o := <-br.Cmd(ctx, script); o.Err != nil {
			b.Fatal(o.Err)
		}
	}
}

// --- Native tclsh (if available) ---

func BenchmarkNative_Tclsh(b *testing.B) {
	path, err := exec.LookPath("tclsh")
	if err != nil {
		b.Skip("tclsh not on PATH")
	}
	for i := 0; i < b.N; i++ {
		cmd := exec.Command(path)
		cmd.Stdin = strings.NewReader("puts [" + script + "]")
		cmd.Run()
	}
}

// =============================================================================
// COMPARISON TEST - Human readable output
// =============================================================================

func TestComparison(t *testing.T) {
	fmt.Println()
	fmt.Printf("Platform: %s/%s, CPUs: %d\n", runtime.GOOS, runtime.GOARCH, runtime.NumCPU())
	fmt.Println()

	measure := func(runs int, fn func()) time.Duration {
		var total time.Duration
		for i := 0; i < runs; i++ {
			start := time.Now()
			fn()
			total += time.Since(start)
		}
		return total / time.Duration(runs)
	}

	br := newBridge(t, wasmFactory(t))
	ctx := context.Background()
	runs := 5

	sync := measure(runs, func() { br.CmdSync(ctx, script) })
	async := measure(runs, func() { <-br.Cmd(ctx, script) })

	fmt.Println("┌────────────────────────┬───────────┐")
	fmt.Println("│ Mode                   │ Per call  │")
	fmt.Println("├────────────────────────┼───────────┤")
	fmt.Printf("│ %-22s │ %9s │\n", "shared (CmdSync)", formatDuration(sync))
	fmt.Printf("│ %-22s │ %9s │\n", "isolated (Cmd)", formatDuration(async))
	fmt.Println("└────────────────────────┴───────────┘")
	fmt.Println()

	t.Log("Comparison complete - see stdout for results")
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%.1fms", float64(d.Microseconds())/1000)
	default:
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
}
