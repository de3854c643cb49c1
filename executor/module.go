package executor

// Module describes a WASI build of the Tcl shell.
// Implement this interface to plug in a different tclsh distribution.
type Module interface {
	// Name returns a unique identifier for this build (e.g., "tclsh-8.6.13").
	// Used as the cache key for compiled modules.
	Name() string

	// Binary returns the WASM binary.
	Binary() []byte

	// Args returns the command-line arguments that make the shell run
	// the script at scriptPath, e.g. []string{"tclsh", scriptPath}.
	Args(scriptPath string) []string
}
