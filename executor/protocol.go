package executor

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/caffeineduck/tclbridge/bridge"
)

// Frame layout shared with driver.tcl: "<kind> <length>\n<payload>", the
// length counting payload bytes.
const (
	opEval  = "eval"
	opSplit = "split"

	frameReady     = "ready"
	frameOK        = "ok"
	frameError     = "error"
	frameErrorCode = "errorcode"
	frameErrorInfo = "errorinfo"
	frameItem      = "item"
	frameEnd       = "end"
	frameOutput    = "output"

	maxFrameSize = 64 << 20
)

// response is one complete answer from the driver.
type response struct {
	ready  bool
	value  string
	items  []string
	output string
	err    *bridge.EvalError
}

func writeFrame(w io.Writer, kind, payload string) error {
	_, err := fmt.Fprintf(w, "%s %d\n%s", kind, len(payload), payload)
	return err
}

func readFrame(r *bufio.Reader) (kind, payload string, err error) {
	header, err := r.ReadString('\n')
	if err != nil {
		if err == io.EOF && header != "" {
			err = io.ErrUnexpectedEOF
		}
		return "", "", err
	}

	kind, size, ok := strings.Cut(strings.TrimSuffix(header, "\n"), " ")
	if !ok {
		return "", "", fmt.Errorf("malformed frame header %q", header)
	}
	n, err := strconv.Atoi(size)
	if err != nil || n < 0 || n > maxFrameSize {
		return "", "", fmt.Errorf("malformed frame length %q", size)
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", "", fmt.Errorf("read %s frame: %w", kind, err)
	}
	return kind, string(buf), nil
}

// readResponse reads frames until one response is complete.
func readResponse(r *bufio.Reader) (response, error) {
	var resp response
	var output strings.Builder
	inList := false

	for {
		kind, payload, err := readFrame(r)
		if err != nil {
			return response{}, err
		}

		switch kind {
		case frameReady:
			return response{ready: true, value: payload}, nil

		case frameOutput:
			output.WriteString(payload)

		case frameOK:
			resp.value = payload
			resp.output = output.String()
			return resp, nil

		case frameItem:
			inList = true
			resp.items = append(resp.items, payload)

		case frameEnd:
			if resp.items == nil {
				resp.items = []string{}
			}
			resp.output = output.String()
			return resp, nil

		case frameError:
			if inList {
				return response{}, fmt.Errorf("error frame inside list response")
			}
			e := &bridge.EvalError{Message: payload}
			for _, want := range []string{frameErrorCode, frameErrorInfo} {
				k, p, err := readFrame(r)
				if err != nil {
					return response{}, err
				}
				if k != want {
					return response{}, fmt.Errorf("expected %s frame, got %q", want, k)
				}
				if want == frameErrorCode {
					e.Code = p
				} else {
					e.Info = p
				}
			}
			resp.err = e
			resp.output = output.String()
			return resp, nil

		default:
			return response{}, fmt.Errorf("unknown frame kind %q", kind)
		}
	}
}
