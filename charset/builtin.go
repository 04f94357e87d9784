package charset

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"
)

// ErrUnknownBuiltin is returned for a builtin name that does not exist.
var ErrUnknownBuiltin = errors.New("charset: unknown builtin set")

// GB2312 hanzi occupy rows 16-87 of the 94×94 code table. Level 1 (common,
// sorted by pinyin) is rows 16-55, level 2 (sorted by radical) rows 56-87.
// Row 55 stops at column 89.
const (
	gbLevel1First = 16
	gbLevel1Last  = 55
	gbLevel2First = 56
	gbLevel2Last  = 87
	gbRow55Cols   = 89
	gbCols        = 94
)

var builtins = map[string]func() *Set{
	"ascii":    ascii,
	"gb2312-1": func() *Set { return gb2312Rows(gbLevel1First, gbLevel1Last) },
	"gb2312-2": func() *Set { return gb2312Rows(gbLevel2First, gbLevel2Last) },
}

var (
	builtinMu    sync.Mutex
	builtinCache = map[string]*Set{}
)

// Builtins returns the names of the builtin sets.
func Builtins() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Builtin returns a fresh copy of the named builtin set.
func Builtin(name string) (*Set, error) {
	name = strings.ToLower(name)
	build, ok := builtins[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (have %s)", ErrUnknownBuiltin, name, strings.Join(Builtins(), ", "))
	}

	builtinMu.Lock()
	defer builtinMu.Unlock()
	s, ok := builtinCache[name]
	if !ok {
		s = build()
		builtinCache[name] = s
	}
	out := &Set{}
	out.Union(s)
	return out, nil
}

// ascii is the printable ASCII range.
func ascii() *Set {
	s := &Set{}
	s.AddRange(0x20, 0x7E)
	return s
}

// gb2312Rows decodes every assigned code point of the given rows.
func gb2312Rows(first, last int) *Set {
	dec := simplifiedchinese.GBK.NewDecoder()
	s := &Set{}
	buf := make([]byte, 0, 2*gbCols)
	for row := first; row <= last; row++ {
		cols := gbCols
		if row == gbLevel1Last {
			cols = gbRow55Cols
		}
		buf = buf[:0]
		for col := 1; col <= cols; col++ {
			buf = append(buf, byte(0xA0+row), byte(0xA0+col))
		}
		out, err := dec.Bytes(buf)
		if err != nil {
			continue
		}
		for _, r := range string(out) {
			if r != utf8.RuneError {
				s.Add(r)
			}
		}
	}
	return s
}
