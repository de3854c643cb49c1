// Package tclsh describes WASI builds of the Tcl shell for the executor.
package tclsh

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caffeineduck/tclbridge/executor"
)

var _ executor.Module = (*Module)(nil)

// Module is a tclsh WASM binary.
type Module struct {
	name string
	wasm []byte
}

// New returns a Module for wasm. name is the compile-cache key and must
// differ between distinct binaries run by the same executor.
func New(name string, wasm []byte) *Module {
	return &Module{name: name, wasm: wasm}
}

// Open reads a WASI tclsh binary from path. The module is named after the
// file and a digest of its contents.
func Open(path string) (*Module, error) {
	wasm, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tclsh module: %w", err)
	}
	if len(wasm) < 4 || string(wasm[:4]) != "\x00asm" {
		return nil, fmt.Errorf("%s: not a WebAssembly module", path)
	}

	sum := sha256.Sum256(wasm)
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return New(base+"-"+hex.EncodeToString(sum[:6]), wasm), nil
}

// Name returns the compile-cache key.
func (m *Module) Name() string {
	return m.name
}

// Binary returns the WASM binary.
func (m *Module) Binary() []byte {
	return m.wasm
}

// Args runs the shell on scriptPath.
func (m *Module) Args(scriptPath string) []string {
	return []string{"tclsh", scriptPath}
}
