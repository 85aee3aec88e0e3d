// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package config

import (
	"fmt"
	"io"
	"strconv"
	"text/scanner"
	"unicode"

	"github.com/grailbio/lanis/errors"
)

type stmt struct {
	pos                    scanner.Position
	instance, param, value string
}

type parser struct {
	scanner.Scanner
	err error
}

func isIdentRune(ch rune, i int) bool {
	switch {
	case ch == '_' || unicode.IsLetter(ch):
		return true
	case i > 0 && (ch == '/' || ch == '-' || unicode.IsDigit(ch)):
		return true
	}
	return false
}

// parse parses statements of the forms
//
//	param instance key = value
//	param instance (
//		key = value
//		...
//	)
//
// Values are quoted strings, integers, or identifiers such as true
// and false. Comments are Go comments.
func parse(r io.Reader) ([]stmt, error) {
	var p parser
	p.Init(r)
	p.Mode = scanner.ScanIdents | scanner.ScanInts | scanner.ScanFloats |
		scanner.ScanStrings | scanner.ScanRawStrings | scanner.ScanComments | scanner.SkipComments
	p.IsIdentRune = isIdentRune
	p.Error = func(s *scanner.Scanner, msg string) {
		if p.err == nil {
			p.err = p.errorf("%s", msg)
		}
	}
	var stmts []stmt
	for {
		tok := p.Scan()
		if p.err != nil {
			return nil, p.err
		}
		switch {
		case tok == scanner.EOF:
			return stmts, nil
		case tok == scanner.Ident && p.TokenText() == "param":
		default:
			return nil, p.errorf("expected \"param\", got %q", p.TokenText())
		}
		pos := p.Position
		if p.Scan() != scanner.Ident {
			return nil, p.errorf("expected instance name, got %q", p.TokenText())
		}
		inst := p.TokenText()
		if tok = p.Scan(); tok != '(' {
			s, err := p.assignment(inst, tok)
			if err != nil {
				return nil, err
			}
			s.pos = pos
			stmts = append(stmts, s)
			continue
		}
		for {
			tok = p.Scan()
			if tok == ')' {
				break
			}
			if tok == scanner.EOF {
				return nil, p.errorf("unterminated parameter block for %s", inst)
			}
			s, err := p.assignment(inst, tok)
			if err != nil {
				return nil, err
			}
			s.pos = pos
			stmts = append(stmts, s)
		}
	}
}

// assignment parses "key = value"; tok is the already scanned key.
func (p *parser) assignment(inst string, tok rune) (stmt, error) {
	if p.err != nil {
		return stmt{}, p.err
	}
	if tok != scanner.Ident {
		return stmt{}, p.errorf("expected parameter name, got %q", p.TokenText())
	}
	s := stmt{instance: inst, param: p.TokenText()}
	if p.Scan() != '=' {
		return stmt{}, p.errorf("expected \"=\", got %q", p.TokenText())
	}
	v, err := p.value()
	if err != nil {
		return stmt{}, err
	}
	s.value = v
	return s, nil
}

func (p *parser) value() (string, error) {
	neg := ""
	tok := p.Scan()
	if tok == '-' {
		neg = "-"
		tok = p.Scan()
		if tok != scanner.Int && tok != scanner.Float {
			return "", p.errorf("expected number after \"-\", got %q", p.TokenText())
		}
	}
	switch tok {
	case scanner.String, scanner.RawString:
		v, err := strconv.Unquote(p.TokenText())
		if err != nil {
			return "", p.errorf("invalid string %s", p.TokenText())
		}
		return v, nil
	case scanner.Int, scanner.Float, scanner.Ident:
		return neg + p.TokenText(), nil
	}
	return "", p.errorf("expected value, got %q", p.TokenText())
}

func (p *parser) errorf(format string, args ...interface{}) error {
	return errors.E(errors.Invalid, fmt.Sprintf("config: %s: %s", p.Pos(), fmt.Sprintf(format, args...)))
}
