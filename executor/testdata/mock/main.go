//go:build wasip1

// Mock interpreter speaking the driver frame protocol, for testing session
// plumbing without a real tclsh.
// Built by TestMain; to prebuild: GOOS=wasip1 GOARCH=wasm go build -o ../mock.wasm .
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

func send(w *bufio.Writer, kind, payload string) {
	fmt.Fprintf(w, "%s %d\n%s", kind, len(payload), payload)
}

func main() {
	r := bufio.NewReader(os.Stdin)
	w := bufio.NewWriter(os.Stdout)
	vars := map[string]string{}

	send(w, "ready", "8.6-mock")
	w.Flush()

	for {
		header, err := r.ReadString('\n')
		if err != nil {
			return
		}
		op, size, _ := strings.Cut(strings.TrimSpace(header), " ")
		n, _ := strconv.Atoi(size)
		buf := make([]byte, n)
		if _, err := io.ReadFull(r, buf); err != nil {
			return
		}
		script := string(buf)

		switch {
		case op == "split":
			for _, f := range strings.Fields(script) {
				send(w, "item", f)
			}
			send(w, "end", "")
		case script == "while 1 {}":
			for {
			}
		case script == "garble":
			// Raw bytes outside any frame.
			w.WriteString("not a frame\n")
		case strings.HasPrefix(script, "after "):
			ms, _ := strconv.Atoi(strings.TrimPrefix(script, "after "))
			time.Sleep(time.Duration(ms) * time.Millisecond)
			send(w, "ok", script)
		case strings.HasPrefix(script, "error "):
			msg := strings.TrimPrefix(script, "error ")
			send(w, "error", msg)
			send(w, "errorcode", "NONE")
			send(w, "errorinfo", msg+"\n    while executing\n\""+script+"\"")
		case strings.HasPrefix(script, "puts "):
			send(w, "output", strings.TrimPrefix(script, "puts ")+"\n")
			send(w, "ok", "")
		case strings.HasPrefix(script, "set "):
			args := strings.Fields(strings.TrimPrefix(script, "set "))
			if len(args) == 2 {
				vars[args[0]] = args[1]
			}
			v, ok := vars[args[0]]
			if !ok {
				msg := fmt.Sprintf("can't read %q: no such variable", args[0])
				send(w, "error", msg)
				send(w, "errorcode", "TCL LOOKUP VARNAME "+args[0])
				send(w, "errorinfo", msg)
				break
			}
			send(w, "ok", v)
		default:
			send(w, "ok", script)
		}
		w.Flush()
	}
}
