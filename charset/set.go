// Package charset builds the set of characters an atlas is generated for.
//
// A Set holds unique characters and iterates them in code point order.
// Sets come from builtin tables, from charset files, or from expressions
// combining both:
//
//	ascii + gb2312-1 + U+0400..U+04FF + "€" - "`"
package charset

import (
	"slices"
	"strings"
)

// Set is a set of characters. The zero value is an empty set ready to use.
type Set struct {
	m map[rune]struct{}
}

// New creates a set holding runes.
func New(runes ...rune) *Set {
	s := &Set{}
	for _, r := range runes {
		s.Add(r)
	}
	return s
}

// FromString creates a set holding every character of str except line
// breaks.
func FromString(str string) *Set {
	s := &Set{}
	s.AddString(str)
	return s
}

// Add inserts r.
func (s *Set) Add(r rune) {
	if s.m == nil {
		s.m = make(map[rune]struct{})
	}
	s.m[r] = struct{}{}
}

// AddString inserts every character of str except '\n' and '\r'.
func (s *Set) AddString(str string) {
	for _, r := range str {
		if r == '\n' || r == '\r' {
			continue
		}
		s.Add(r)
	}
}

// AddRange inserts lo..hi inclusive.
func (s *Set) AddRange(lo, hi rune) {
	for r := lo; r <= hi; r++ {
		s.Add(r)
	}
}

// Remove deletes r.
func (s *Set) Remove(r rune) { delete(s.m, r) }

// Union adds every member of o.
func (s *Set) Union(o *Set) {
	for r := range o.m {
		s.Add(r)
	}
}

// Subtract removes every member of o.
func (s *Set) Subtract(o *Set) {
	for r := range o.m {
		delete(s.m, r)
	}
}

// Has reports whether r is a member.
func (s *Set) Has(r rune) bool {
	_, ok := s.m[r]
	return ok
}

// Len returns the number of members.
func (s *Set) Len() int { return len(s.m) }

// Runes returns the members in ascending code point order.
func (s *Set) Runes() []rune {
	out := make([]rune, 0, len(s.m))
	for r := range s.m {
		out = append(out, r)
	}
	slices.Sort(out)
	return out
}

// String returns the members in order as one string.
func (s *Set) String() string {
	var b strings.Builder
	for _, r := range s.Runes() {
		b.WriteRune(r)
	}
	return b.String()
}
