package interptest

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/caffeineduck/tclbridge/bridge"
)

type returnSignal struct {
	value string
}

func (r *returnSignal) Error() string { return "return outside of proc" }

func tclError(msg, code string) error {
	return &bridge.EvalError{Message: msg, Code: code, Info: msg}
}

func wrongArgs(usage string) error {
	return tclError(fmt.Sprintf("wrong # args: should be %q", usage), "TCL WRONGARGS")
}

func (in *Interp) eval(script string) (string, error) {
	p := &parser{src: script}
	result := ""
	for {
		words, ok, err := p.command(in)
		if err != nil {
			return "", err
		}
		if !ok {
			return result, nil
		}
		if len(words) == 0 {
			continue
		}

		res, err := in.invoke(words)
		if err != nil {
			if r, ok := err.(*returnSignal); ok {
				return r.value, nil
			}
			return "", err
		}
		result = res
	}
}

func (in *Interp) invoke(words []string) (string, error) {
	args := words[1:]
	switch words[0] {
	case "set":
		switch len(args) {
		case 1:
			return in.get(args[0])
		case 2:
			in.vars[args[0]] = args[1]
			return args[1], nil
		}
		return "", wrongArgs("set varName ?newValue?")

	case "unset":
		for _, name := range args {
			if _, ok := in.vars[name]; !ok {
				return "", tclError(fmt.Sprintf("can't unset %q: no such variable", name), "TCL LOOKUP VARNAME "+name)
			}
			delete(in.vars, name)
		}
		return "", nil

	case "incr":
		if len(args) < 1 || len(args) > 2 {
			return "", wrongArgs("incr varName ?increment?")
		}
		var cur int64
		if v, ok := in.vars[args[0]]; ok {
			n, err := strconv.ParseInt(strings.TrimSpace(v), 0, 64)
			if err != nil {
				return "", tclError(fmt.Sprintf("expected integer but got %q", v), "TCL VALUE NUMBER")
			}
			cur = n
		}
		step := int64(1)
		if len(args) == 2 {
			n, err := strconv.ParseInt(strings.TrimSpace(args[1]), 0, 64)
			if err != nil {
				return "", tclError(fmt.Sprintf("expected integer but got %q", args[1]), "TCL VALUE NUMBER")
			}
			step = n
		}
		v := strconv.FormatInt(cur+step, 10)
		in.vars[args[0]] = v
		return v, nil

	case "append":
		if len(args) < 1 {
			return "", wrongArgs("append varName ?value ...?")
		}
		v := in.vars[args[0]] + strings.Join(args[1:], "")
		in.vars[args[0]] = v
		return v, nil

	case "expr":
		if len(args) == 0 {
			return "", wrongArgs("expr arg ?arg ...?")
		}
		expr, err := (&parser{src: strings.Join(args, " ")}).scan(in, nil)
		if err != nil {
			return "", err
		}
		return evalExpr(expr)

	case "list":
		return formatList(args), nil

	case "llength":
		if len(args) != 1 {
			return "", wrongArgs("llength list")
		}
		items, err := splitList(args[0])
		if err != nil {
			return "", err
		}
		return strconv.Itoa(len(items)), nil

	case "info":
		return in.info(args)

	case "error":
		if len(args) < 1 || len(args) > 3 {
			return "", wrongArgs("error message ?errorInfo? ?errorCode?")
		}
		e := &bridge.EvalError{Message: args[0], Code: "NONE", Info: args[0]}
		if len(args) > 1 && args[1] != "" {
			e.Info = args[1]
		}
		if len(args) > 2 {
			e.Code = args[2]
		}
		return "", e

	case "return":
		v := ""
		if len(args) > 0 {
			v = args[len(args)-1]
		}
		return "", &returnSignal{value: v}
	}

	return "", tclError(fmt.Sprintf("invalid command name %q", words[0]), "TCL LOOKUP COMMAND "+words[0])
}

func (in *Interp) get(name string) (string, error) {
	v, ok := in.vars[name]
	if !ok {
		return "", tclError(fmt.Sprintf("can't read %q: no such variable", name), "TCL LOOKUP VARNAME "+name)
	}
	return v, nil
}

func (in *Interp) info(args []string) (string, error) {
	if len(args) == 0 {
		return "", wrongArgs("info subcommand ?arg ...?")
	}
	switch args[0] {
	case "tclversion":
		return in.factory.cfg.version, nil
	case "patchlevel":
		return in.factory.cfg.patchlevel, nil
	case "exists":
		if len(args) != 2 {
			return "", wrongArgs("info exists varName")
		}
		if _, ok := in.vars[args[1]]; ok {
			return "1", nil
		}
		return "0", nil
	}
	return "", tclError(fmt.Sprintf("unknown or ambiguous subcommand %q", args[0]), "TCL LOOKUP SUBCOMMAND "+args[0])
}

// parser splits a script into commands and words, performing
// substitutions as it goes.
type parser struct {
	src string
	pos int
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) peek() byte { return p.src[p.pos] }

// command parses the next command. ok is false at end of script.
func (p *parser) command(in *Interp) (words []string, ok bool, err error) {
	for !p.eof() {
		c := p.peek()
		if isSpace(c) || c == '\n' || c == ';' {
			p.pos++
			continue
		}
		if c == '#' {
			for !p.eof() && p.peek() != '\n' {
				p.pos++
			}
			continue
		}
		break
	}
	if p.eof() {
		return nil, false, nil
	}

	for {
		for !p.eof() && isSpace(p.peek()) {
			p.pos++
		}
		if p.eof() {
			return words, true, nil
		}
		if c := p.peek(); c == '\n' || c == ';' {
			p.pos++
			return words, true, nil
		}

		w, err := p.word(in)
		if err != nil {
			return nil, false, err
		}
		words = append(words, w)
	}
}

func (p *parser) word(in *Interp) (string, error) {
	switch p.peek() {
	case '{':
		body, err := p.braced()
		if err != nil {
			return "", err
		}
		return body, nil
	case '"':
		p.pos++
		w, err := p.scan(in, func(c byte) bool { return c == '"' })
		if err != nil {
			return "", err
		}
		if p.eof() {
			return "", tclError(`missing "`, "TCL PARSE QUOTE")
		}
		p.pos++
		return w, nil
	}
	return p.scan(in, func(c byte) bool { return isSpace(c) || c == '\n' || c == ';' })
}

// braced returns the contents of a brace-quoted word without substitution.
func (p *parser) braced() (string, error) {
	start := p.pos + 1
	depth := 0
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case '\\':
			p.pos++
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				body := p.src[start:p.pos]
				p.pos++
				return body, nil
			}
		}
		p.pos++
	}
	return "", tclError("missing close-brace", "TCL PARSE BRACE")
}

// scan reads until stop reports true or the source ends, substituting
// variables, commands and backslash sequences. A nil stop scans to the end.
func (p *parser) scan(in *Interp, stop func(byte) bool) (string, error) {
	var b strings.Builder
	for !p.eof() {
		c := p.peek()
		if stop != nil && stop(c) {
			break
		}
		switch c {
		case '$':
			v, err := p.variable(in)
			if err != nil {
				return "", err
			}
			b.WriteString(v)
		case '[':
			body, err := p.bracket()
			if err != nil {
				return "", err
			}
			v, err := in.eval(body)
			if err != nil {
				return "", err
			}
			b.WriteString(v)
		case '\\':
			p.pos++
			b.WriteString(p.escape())
		default:
			b.WriteByte(c)
			p.pos++
		}
	}
	return b.String(), nil
}

func (p *parser) variable(in *Interp) (string, error) {
	p.pos++
	if !p.eof() && p.peek() == '{' {
		end := strings.IndexByte(p.src[p.pos:], '}')
		if end < 0 {
			return "", tclError("missing close-brace for variable name", "TCL PARSE VARNAME")
		}
		name := p.src[p.pos+1 : p.pos+end]
		p.pos += end + 1
		return in.get(name)
	}

	start := p.pos
	for !p.eof() && isNameChar(p.peek()) {
		p.pos++
	}
	if start == p.pos {
		return "$", nil
	}
	return in.get(p.src[start:p.pos])
}

func (p *parser) bracket() (string, error) {
	start := p.pos + 1
	depth := 0
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case '\\':
			p.pos++
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				body := p.src[start:p.pos]
				p.pos++
				return body, nil
			}
		}
		p.pos++
	}
	return "", tclError("missing close-bracket", "TCL PARSE BRACKET")
}

func (p *parser) escape() string {
	if p.eof() {
		return `\`
	}
	c := p.peek()
	p.pos++
	switch c {
	case 'n':
		return "\n"
	case 't':
		return "\t"
	case 'r':
		return "\r"
	case '\n':
		return " "
	}
	return string(c)
}

func isSpace(c byte) bool { return c == ' ' || c == '\t' || c == '\r' }

func isNameChar(c byte) bool {
	return c == '_' || c == ':' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// splitList parses a Tcl list.
func splitList(s string) ([]string, error) {
	items := []string{}
	i := 0
	for {
		for i < len(s) && (isSpace(s[i]) || s[i] == '\n') {
			i++
		}
		if i >= len(s) {
			return items, nil
		}

		switch s[i] {
		case '{':
			p := &parser{src: s, pos: i}
			body, err := p.braced()
			if err != nil {
				return nil, tclError("unmatched open brace in list", "TCL VALUE LIST BRACE")
			}
			i = p.pos
			if i < len(s) && !isSpace(s[i]) && s[i] != '\n' {
				return nil, tclError(fmt.Sprintf("list element in braces followed by %q instead of space", s[i:i+1]), "TCL VALUE LIST JUNK")
			}
			items = append(items, body)
		case '"':
			var b strings.Builder
			i++
			for i < len(s) && s[i] != '"' {
				if s[i] == '\\' && i+1 < len(s) {
					i++
				}
				b.WriteByte(s[i])
				i++
			}
			if i >= len(s) {
				return nil, tclError("unmatched open quote in list", "TCL VALUE LIST QUOTE")
			}
			i++
			items = append(items, b.String())
		default:
			var b strings.Builder
			for i < len(s) && !isSpace(s[i]) && s[i] != '\n' {
				if s[i] == '\\' && i+1 < len(s) {
					i++
				}
				b.WriteByte(s[i])
				i++
			}
			items = append(items, b.String())
		}
	}
}

func formatList(items []string) string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = quoteElement(item)
	}
	return strings.Join(out, " ")
}

func quoteElement(s string) string {
	if s == "" {
		return "{}"
	}
	if !strings.ContainsAny(s, " \t\r\n{}[]$\\\";") && s[0] != '#' {
		return s
	}
	if balancedBraces(s) && !strings.HasSuffix(s, `\`) {
		return "{" + s + "}"
	}

	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if strings.IndexByte(" \t{}[]$\\\";", s[i]) >= 0 {
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func balancedBraces(s string) bool {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '{':
			depth++
		case '}':
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return depth == 0
}
