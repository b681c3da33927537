// Package scanner walks the framing of a single marshalled unit: the
// marker, the type tag, colon-delimited length fields and length-prefixed
// nested units. It never interprets nested units; the decoder does that.
package scanner

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/KimNorgaard/go-sdt/internal/token"
)

// Error reports why a unit could not be scanned.
type Error struct {
	Offset int
	Msg    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("offset %d: %s", e.Offset, e.Msg)
}

// Scanner holds the state for walking one marshalled unit.
type Scanner struct {
	input string
	pos   int
}

// New returns a Scanner positioned at the start of input.
func New(input string) *Scanner {
	return &Scanner{input: input}
}

// Pos returns the current byte offset.
func (s *Scanner) Pos() int { return s.pos }

// Len returns the number of unconsumed bytes.
func (s *Scanner) Len() int { return len(s.input) - s.pos }

// Done reports whether every byte has been consumed.
func (s *Scanner) Done() bool { return s.pos >= len(s.input) }

// Rest returns the unconsumed input without consuming it.
func (s *Scanner) Rest() string { return s.input[s.pos:] }

func (s *Scanner) errorf(format string, args ...any) error {
	return &Error{Offset: s.pos, Msg: fmt.Sprintf(format, args...)}
}

// Header consumes the marker and the type tag that open a unit.
func (s *Scanner) Header() (token.Type, error) {
	if !strings.HasPrefix(s.Rest(), token.Marker) {
		return token.ILLEGAL, s.errorf("missing %s marker", token.Marker)
	}
	at := s.pos + len(token.Marker)
	if at >= len(s.input) {
		return token.ILLEGAL, s.errorf("missing type tag")
	}
	t := token.Lookup(s.input[at])
	if t == token.ILLEGAL {
		return t, s.errorf("unknown type tag %q", s.input[at])
	}
	s.pos = at + 1
	return t, nil
}

// Expect consumes lit, which must appear at the current position.
func (s *Scanner) Expect(lit string) error {
	if !strings.HasPrefix(s.Rest(), lit) {
		return s.errorf("expected %q", lit)
	}
	s.pos += len(lit)
	return nil
}

// Field returns the text up to the next colon and consumes both.
func (s *Scanner) Field() (string, error) {
	i := strings.IndexByte(s.Rest(), ':')
	if i < 0 {
		return "", s.errorf("missing ':' delimiter")
	}
	f := s.input[s.pos : s.pos+i]
	s.pos += i + 1
	return f, nil
}

// Length consumes a colon-terminated decimal length field.
func (s *Scanner) Length() (int, error) {
	start := s.pos
	f, err := s.Field()
	if err != nil {
		return 0, err
	}
	n, err := ParseLength(f)
	if err != nil {
		return 0, &Error{Offset: start, Msg: err.Error()}
	}
	return n, nil
}

// ExpectRemaining checks that exactly n bytes remain.
func (s *Scanner) ExpectRemaining(n int) error {
	if n != s.Len() {
		return s.errorf("declared length %d does not match %d remaining bytes", n, s.Len())
	}
	return nil
}

// Take consumes and returns exactly n bytes.
func (s *Scanner) Take(n int) (string, error) {
	if n > s.Len() {
		return "", s.errorf("declared length %d exceeds %d available bytes", n, s.Len())
	}
	v := s.input[s.pos : s.pos+n]
	s.pos += n
	return v, nil
}

// Unit consumes the next nested unit and returns its full text. A unit spans
// from the current position through the byte count carried in its second
// colon-delimited field, which every unit kind places right after its header.
func (s *Scanner) Unit() (string, error) {
	rest := s.Rest()
	c1 := strings.IndexByte(rest, ':')
	if c1 < 0 {
		return "", s.errorf("missing ':' delimiter in nested unit")
	}
	c2 := strings.IndexByte(rest[c1+1:], ':')
	if c2 < 0 {
		return "", s.errorf("missing ':' delimiter in nested unit")
	}
	c2 += c1 + 1
	n, err := ParseLength(rest[c1+1 : c2])
	if err != nil {
		return "", &Error{Offset: s.pos + c1 + 1, Msg: err.Error()}
	}
	if avail := len(rest) - c2 - 1; n > avail {
		return "", s.errorf("nested unit length %d exceeds %d available bytes", n, avail)
	}
	end := c2 + 1 + n
	s.pos += end
	return rest[:end], nil
}

// ParseLength parses a length field. Only a non-empty run of ASCII digits is
// accepted; signs, spaces and trailing characters are rejected.
func ParseLength(f string) (int, error) {
	if f == "" {
		return 0, fmt.Errorf("empty length field")
	}
	for i := 0; i < len(f); i++ {
		if f[i] < '0' || f[i] > '9' {
			return 0, fmt.Errorf("non-numeric length field %q", f)
		}
	}
	n, err := strconv.Atoi(f)
	if err != nil {
		return 0, fmt.Errorf("length field %q out of range", f)
	}
	return n, nil
}
