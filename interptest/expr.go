package interptest

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

type number struct {
	i     int64
	f     float64
	float bool
}

func (n number) toFloat() float64 {
	if n.float {
		return n.f
	}
	return float64(n.i)
}

func (n number) String() string {
	if !n.float {
		return strconv.FormatInt(n.i, 10)
	}
	s := strconv.FormatFloat(n.f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEIN") {
		s += ".0"
	}
	return s
}

func boolNumber(b bool) number {
	if b {
		return number{i: 1}
	}
	return number{}
}

// evalExpr evaluates an already-substituted arithmetic expression.
func evalExpr(src string) (string, error) {
	toks, err := tokenize(src)
	if err != nil {
		return "", err
	}
	e := &exprParser{toks: toks}
	n, err := e.parse(0)
	if err != nil {
		return "", err
	}
	if e.pos != len(e.toks) {
		return "", tclError(fmt.Sprintf("syntax error in expression %q", src), "TCL PARSE EXPR")
	}
	return n.String(), nil
}

func tokenize(src string) ([]string, error) {
	var toks []string
	for i := 0; i < len(src); {
		c := src[i]
		switch {
		case isSpace(c) || c == '\n':
			i++
		case (c >= '0' && c <= '9') || c == '.':
			j := i
			for j < len(src) && (isNameChar(src[j]) || src[j] == '.') {
				if (src[j] == 'e' || src[j] == 'E') && j+1 < len(src) && (src[j+1] == '+' || src[j+1] == '-') && !strings.HasPrefix(src[i:], "0x") {
					j++
				}
				j++
			}
			toks = append(toks, src[i:j])
			i = j
		case strings.ContainsRune("=!<>&|", rune(c)) && i+1 < len(src) && isDoubleOp(src[i:i+2]):
			toks = append(toks, src[i:i+2])
			i += 2
		case strings.ContainsRune("+-*/%<>()!", rune(c)):
			toks = append(toks, string(c))
			i++
		default:
			j := i
			for j < len(src) && !isSpace(src[j]) && !strings.ContainsRune("+-*/%<>()!=&|", rune(src[j])) {
				j++
			}
			return nil, tclError(fmt.Sprintf("invalid bareword %q", src[i:j]), "TCL PARSE EXPR")
		}
	}
	return toks, nil
}

func isDoubleOp(s string) bool {
	switch s {
	case "==", "!=", "<=", ">=", "&&", "||":
		return true
	}
	return false
}

var precedence = map[string]int{
	"||": 1,
	"&&": 2,
	"==": 3, "!=": 3,
	"<": 4, ">": 4, "<=": 4, ">=": 4,
	"+": 5, "-": 5,
	"*": 6, "/": 6, "%": 6,
}

type exprParser struct {
	toks []string
	pos  int
}

func (e *exprParser) parse(minPrec int) (number, error) {
	lhs, err := e.unary()
	if err != nil {
		return number{}, err
	}
	for e.pos < len(e.toks) {
		op := e.toks[e.pos]
		prec, ok := precedence[op]
		if !ok || prec <= minPrec {
			break
		}
		e.pos++
		rhs, err := e.parse(prec)
		if err != nil {
			return number{}, err
		}
		lhs, err = binary(op, lhs, rhs)
		if err != nil {
			return number{}, err
		}
	}
	return lhs, nil
}

func (e *exprParser) unary() (number, error) {
	if e.pos >= len(e.toks) {
		return number{}, tclError("missing operand", "TCL PARSE EXPR")
	}
	tok := e.toks[e.pos]
	e.pos++

	switch tok {
	case "-", "+", "!":
		n, err := e.unary()
		if err != nil {
			return number{}, err
		}
		switch tok {
		case "-":
			if n.float {
				return number{f: -n.f, float: true}, nil
			}
			return number{i: -n.i}, nil
		case "!":
			return boolNumber(n.toFloat() == 0), nil
		}
		return n, nil
	case "(":
		n, err := e.parse(0)
		if err != nil {
			return number{}, err
		}
		if e.pos >= len(e.toks) || e.toks[e.pos] != ")" {
			return number{}, tclError("missing close parenthesis", "TCL PARSE EXPR")
		}
		e.pos++
		return n, nil
	}
	return parseNumber(tok)
}

func parseNumber(tok string) (number, error) {
	if i, err := strconv.ParseInt(tok, 0, 64); err == nil && !strings.Contains(tok, "_") {
		return number{i: i}, nil
	}
	if f, err := strconv.ParseFloat(tok, 64); err == nil && !strings.Contains(tok, "_") {
		return number{f: f, float: true}, nil
	}
	return number{}, tclError(fmt.Sprintf("invalid bareword %q", tok), "TCL PARSE EXPR")
}

func binary(op string, a, b number) (number, error) {
	switch op {
	case "&&":
		return boolNumber(a.toFloat() != 0 && b.toFloat() != 0), nil
	case "||":
		return boolNumber(a.toFloat() != 0 || b.toFloat() != 0), nil
	case "==":
		return boolNumber(a.toFloat() == b.toFloat()), nil
	case "!=":
		return boolNumber(a.toFloat() != b.toFloat()), nil
	case "<":
		return boolNumber(a.toFloat() < b.toFloat()), nil
	case ">":
		return boolNumber(a.toFloat() > b.toFloat()), nil
	case "<=":
		return boolNumber(a.toFloat() <= b.toFloat()), nil
	case ">=":
		return boolNumber(a.toFloat() >= b.toFloat()), nil
	}

	if a.float || b.float {
		x, y := a.toFloat(), b.toFloat()
		switch op {
		case "+":
			return number{f: x + y, float: true}, nil
		case "-":
			return number{f: x - y, float: true}, nil
		case "*":
			return number{f: x * y, float: true}, nil
		case "/":
			if y == 0 {
				return number{}, tclError("divide by zero", "ARITH DIVZERO {divide by zero}")
			}
			return number{f: x / y, float: true}, nil
		case "%":
			return number{}, tclError(`can't use floating-point value as operand of "%"`, "ARITH DOMAIN")
		}
	}

	x, y := a.i, b.i
	switch op {
	case "+":
		return number{i: x + y}, nil
	case "-":
		return number{i: x - y}, nil
	case "*":
		return number{i: x * y}, nil
	case "/", "%":
		if y == 0 {
			return number{}, tclError("divide by zero", "ARITH DIVZERO {divide by zero}")
		}
		q := int64(math.Floor(float64(x) / float64(y)))
		if op == "/" {
			return number{i: q}, nil
		}
		return number{i: x - q*y}, nil
	}
	return number{}, tclError(fmt.Sprintf("unknown operator %q", op), "TCL PARSE EXPR")
}
