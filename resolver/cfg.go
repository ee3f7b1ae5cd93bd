package resolver

import (
	"fmt"
	"strings"
)

// EvalCfg evaluates a #[cfg] predicate against the enabled features.
// Supported forms: feature = "x", not(p), all(p, ...), any(p, ...).
// Predicates that do not mention features (target_os = "ios", test, ...)
// cannot be decided by the generator and evaluate to true; they are kept
// verbatim on the emitted code.
func EvalCfg(expr string, enabled func(feature string) bool) (bool, error) {
	p := &cfgParser{src: expr}
	v, err := p.parsePredicate(enabled)
	if err != nil {
		return false, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return false, fmt.Errorf("cfg %q: unexpected %q", expr, p.src[p.pos:])
	}
	return v, nil
}

type cfgParser struct {
	src string
	pos int
}

func (p *cfgParser) skipSpace() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

func (p *cfgParser) ident() string {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) && isCfgIdentByte(p.src[p.pos]) {
		p.pos++
	}
	return p.src[start:p.pos]
}

func isCfgIdentByte(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

func (p *cfgParser) consume(c byte) bool {
	p.skipSpace()
	if p.pos < len(p.src) && p.src[p.pos] == c {
		p.pos++
		return true
	}
	return false
}

func (p *cfgParser) str() (string, error) {
	p.skipSpace()
	if !p.consume('"') {
		return "", fmt.Errorf("cfg %q: expected string at %d", p.src, p.pos)
	}
	end := strings.IndexByte(p.src[p.pos:], '"')
	if end < 0 {
		return "", fmt.Errorf("cfg %q: unterminated string", p.src)
	}
	s := p.src[p.pos : p.pos+end]
	p.pos += end + 1
	return s, nil
}

func (p *cfgParser) parsePredicate(enabled func(string) bool) (bool, error) {
	name := p.ident()
	if name == "" {
		return false, fmt.Errorf("cfg %q: expected predicate at %d", p.src, p.pos)
	}
	switch name {
	case "not", "all", "any":
		if !p.consume('(') {
			return false, fmt.Errorf("cfg %q: expected ( after %s", p.src, name)
		}
		var vals []bool
		for !p.consume(')') {
			v, err := p.parsePredicate(enabled)
			if err != nil {
				return false, err
			}
			vals = append(vals, v)
			if !p.consume(',') {
				if !p.consume(')') {
					return false, fmt.Errorf("cfg %q: expected , or ) at %d", p.src, p.pos)
				}
				break
			}
		}
		switch name {
		case "not":
			if len(vals) != 1 {
				return false, fmt.Errorf("cfg %q: not() takes exactly one predicate", p.src)
			}
			return !vals[0], nil
		case "all":
			for _, v := range vals {
				if !v {
					return false, nil
				}
			}
			return true, nil
		default:
			for _, v := range vals {
				if v {
					return true, nil
				}
			}
			return false, nil
		}
	}
	if p.consume('=') {
		value, err := p.str()
		if err != nil {
			return false, err
		}
		if name == "feature" {
			return enabled(value), nil
		}
		return true, nil
	}
	return true, nil
}
