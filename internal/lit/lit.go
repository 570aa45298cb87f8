// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

// Package lit parses sized constant literals in the usual HDL notation:
//
//	<width>'[s]<base><digits>
//
// where base is one of b, o, d or h (binary, octal, decimal, hexadecimal)
// and the optional s marks the constant as signed. Digits may contain '_'
// separators. A bare decimal string, with an optional leading '-', is also
// accepted; its width is left for the caller to infer.
//
package lit

import (
	"math/big"
	"strings"
	"unicode"

	"github.com/pkg/errors"
)

// A Const is a parsed literal. Width is -1 when the literal carries no
// width prefix.
//
type Const struct {
	Width  int
	Signed bool
	Val    *big.Int
}

// Parse parses one literal.
//
func Parse(s string) (Const, error) {
	in := s
	s = strings.TrimSpace(s)
	if s == "" {
		return Const{}, errors.New("empty literal")
	}
	tick := strings.IndexByte(s, '\'')
	if tick < 0 {
		v, ok := new(big.Int).SetString(strings.ReplaceAll(s, "_", ""), 10)
		if !ok {
			return Const{}, errors.Errorf("invalid literal %q", in)
		}
		return Const{Width: -1, Signed: v.Sign() < 0, Val: v}, nil
	}

	width, err := parseWidth(s[:tick])
	if err != nil {
		return Const{}, errors.Wrapf(err, "invalid literal %q", in)
	}
	rest := s[tick+1:]
	signed := false
	if len(rest) > 0 && (rest[0] == 's' || rest[0] == 'S') {
		signed = true
		rest = rest[1:]
	}
	if len(rest) < 2 {
		return Const{}, errors.Errorf("invalid literal %q: missing base or digits", in)
	}
	var base int
	switch rest[0] {
	case 'b', 'B':
		base = 2
	case 'o', 'O':
		base = 8
	case 'd', 'D':
		base = 10
	case 'h', 'H':
		base = 16
	default:
		return Const{}, errors.Errorf("invalid literal %q: unknown base %q", in, rest[0])
	}
	digits := strings.ReplaceAll(rest[1:], "_", "")
	v, ok := new(big.Int).SetString(digits, base)
	if !ok || v.Sign() < 0 {
		return Const{}, errors.Errorf("invalid literal %q: bad digits for base %d", in, base)
	}
	if v.BitLen() > width {
		return Const{}, errors.Errorf("invalid literal %q: value needs %d bits, width is %d", in, v.BitLen(), width)
	}
	return Const{Width: width, Signed: signed, Val: v}, nil
}

func parseWidth(s string) (int, error) {
	if s == "" {
		return 0, errors.New("missing width")
	}
	w := 0
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return 0, errors.Errorf("bad width %q", s)
		}
		w = w*10 + int(r-'0')
		if w > 1<<20 {
			return 0, errors.Errorf("width %q out of range", s)
		}
	}
	if w < 1 {
		return 0, errors.New("width must be positive")
	}
	return w, nil
}
