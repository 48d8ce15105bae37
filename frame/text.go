package frame

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// maxTextLineSize bounds a single line of a text trace record.
const maxTextLineSize = 1024 * 1024

// TextScanner splits a human-readable trace file into records.
//
// The literal first line of the file is captured as the record
// delimiter; every later line that is byte-identical to it starts a new
// record. This is a heuristic, not a grammar: a record containing a line
// identical to the delimiter mis-splits. That limitation is part of the
// format's contract and is intentionally not papered over.
type TextScanner struct {
	sc        *bufio.Scanner
	delimiter string
	// pending holds the delimiter line that opens the next record, or
	// nil when the input is exhausted.
	pending *string
	err     error
}

// NewTextScanner creates a scanner over r and captures the delimiter
// from its first line. An empty input yields a scanner with no records.
func NewTextScanner(r io.Reader) (*TextScanner, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxTextLineSize)

	ts := &TextScanner{sc: sc}
	if sc.Scan() {
		first := sc.Text()
		ts.delimiter = first
		ts.pending = &first
	} else if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading record delimiter: %w", err)
	}

	return ts, nil
}

// Delimiter returns the captured record delimiter line.
func (s *TextScanner) Delimiter() string {
	return s.delimiter
}

// HasNext reports whether another record is available.
func (s *TextScanner) HasNext() bool {
	return s.pending != nil
}

// Next returns the next record, including its leading delimiter line and
// a trailing newline. Returns io.EOF when the input is exhausted.
func (s *TextScanner) Next() (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if s.pending == nil {
		return "", io.EOF
	}

	var b strings.Builder
	b.WriteString(*s.pending)
	b.WriteByte('\n')
	s.pending = nil

	for s.sc.Scan() {
		line := s.sc.Text()
		if line == s.delimiter {
			s.pending = &line

			return b.String(), nil
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	if err := s.sc.Err(); err != nil {
		s.err = fmt.Errorf("reading record: %w", err)

		return "", s.err
	}

	return b.String(), nil
}
