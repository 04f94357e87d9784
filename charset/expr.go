package charset

import (
	"cmp"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

var (
	exprLexer = lexer.MustSimple([]lexer.SimpleRule{
		{Name: "Whitespace", Pattern: `[ \t\r\n]+`},
		{Name: "CodePoint", Pattern: `[Uu]\+[0-9A-Fa-f]{1,6}`},
		{Name: "String", Pattern: `"(?:\\.|[^"])*"`},
		{Name: "File", Pattern: `@[^\s+]+`},
		{Name: "Builtin", Pattern: builtinPattern()},
		{Name: "Ident", Pattern: `[A-Za-z][A-Za-z0-9]*(?:-[A-Za-z0-9]+)*`},
		{Name: "Range", Pattern: `\.\.`},
		{Name: "Op", Pattern: `[-+]`},
	})

	exprParser = participle.MustBuild[Expr](
		participle.Lexer(exprLexer),
		participle.Elide("Whitespace"),
	)
)

// Expr is a charset expression: terms joined by '+' (union) and '-'
// (difference), evaluated left to right.
type Expr struct {
	First *Term     `parser:"@@"`
	Rest  []*OpTerm `parser:"@@*"`
}

// OpTerm is an operator followed by a term.
type OpTerm struct {
	Op   string `parser:"@Op"`
	Term *Term  `parser:"@@"`
}

// Term is one operand.
type Term struct {
	Range   *CodeRange `parser:"  @@"`
	Literal *string    `parser:"| @String"`
	File    string     `parser:"| @File"`
	Builtin string     `parser:"| @(Builtin | Ident)"`
}

// CodeRange is a single code point or an inclusive range.
type CodeRange struct {
	Lo string `parser:"@CodePoint"`
	Hi string `parser:"( Range @CodePoint )?"`
}

// builtinPattern matches a whole builtin name, so that in "ascii-gb2312-1"
// the hyphen between two names lexes as a difference. Other names lex as
// Ident and fail on evaluation.
func builtinPattern() string {
	names := Builtins()
	slices.SortFunc(names, func(a, b string) int { return cmp.Compare(len(b), len(a)) })
	for i, n := range names {
		names[i] = regexp.QuoteMeta(n)
	}
	return `(?i)(?:` + strings.Join(names, "|") + `)\b`
}

// ParseExpr parses a charset expression without evaluating it.
func ParseExpr(input string) (*Expr, error) {
	e, err := exprParser.ParseString("", input)
	if err != nil {
		return nil, fmt.Errorf("charset: %w", err)
	}
	return e, nil
}

// Parse parses and evaluates a charset expression. Terms are builtin names,
// code points (U+4E2D), code point ranges (U+0400..U+04FF), quoted strings
// whose characters are taken literally, and @path charset files.
func Parse(input string) (*Set, error) {
	e, err := ParseExpr(input)
	if err != nil {
		return nil, err
	}
	return e.Eval()
}

// Eval evaluates the expression.
func (e *Expr) Eval() (*Set, error) {
	s, err := e.First.eval()
	if err != nil {
		return nil, err
	}
	for _, ot := range e.Rest {
		t, err := ot.Term.eval()
		if err != nil {
			return nil, err
		}
		if ot.Op == "-" {
			s.Subtract(t)
		} else {
			s.Union(t)
		}
	}
	return s, nil
}

func (t *Term) eval() (*Set, error) {
	switch {
	case t.Range != nil:
		return t.Range.eval()
	case t.Literal != nil:
		str, err := strconv.Unquote(*t.Literal)
		if err != nil {
			return nil, fmt.Errorf("charset: string %s: %w", *t.Literal, err)
		}
		return FromString(str), nil
	case t.File != "":
		return Load(strings.TrimPrefix(t.File, "@"))
	default:
		return Builtin(t.Builtin)
	}
}

func (c *CodeRange) eval() (*Set, error) {
	lo, err := parseCodePoint(c.Lo)
	if err != nil {
		return nil, err
	}
	hi := lo
	if c.Hi != "" {
		if hi, err = parseCodePoint(c.Hi); err != nil {
			return nil, err
		}
	}
	if hi < lo {
		return nil, fmt.Errorf("charset: empty range %s..%s", c.Lo, c.Hi)
	}
	s := &Set{}
	s.AddRange(lo, hi)
	return s, nil
}

func parseCodePoint(tok string) (rune, error) {
	v, err := strconv.ParseUint(tok[2:], 16, 32)
	if err != nil {
		return 0, fmt.Errorf("charset: code point %s: %w", tok, err)
	}
	if v > 0x10FFFF {
		return 0, fmt.Errorf("charset: code point %s out of range", tok)
	}
	return rune(v), nil
}
