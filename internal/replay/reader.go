package replay

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
)

const maxLineSize = 1 << 20

// Reader reads trace events one line at a time. Blank lines are skipped.
type Reader struct {
	scanner *bufio.Scanner
	line    int
}

func NewReader(r io.Reader) *Reader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Reader{scanner: s}
}

// Next returns the next event, io.EOF at the end of the trace, or a
// *ParseError for a malformed line.
func (r *Reader) Next() (Event, error) {
	for r.scanner.Scan() {
		r.line++
		line := bytes.TrimSpace(r.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		ev, err := ParseLine(line)
		if err != nil {
			return Event{}, &ParseError{Line: r.line, Err: err}
		}
		ev.Line = r.line
		return ev, nil
	}
	if err := r.scanner.Err(); err != nil {
		return Event{}, fmt.Errorf("reading trace: %w", err)
	}
	return Event{}, io.EOF
}

// ReadAll parses a whole trace, stopping at the first malformed line.
func ReadAll(r io.Reader) ([]Event, error) {
	rd := NewReader(r)
	var events []Event
	for {
		ev, err := rd.Next()
		if err == io.EOF {
			return events, nil
		}
		if err != nil {
			return events, err
		}
		events = append(events, ev)
	}
}
