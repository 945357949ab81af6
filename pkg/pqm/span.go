package pqm

import "fmt"

// Span is a byte range in the source plus the 1-based line and column of
// its start.
type Span struct {
	Start  int
	End    int
	Line   int
	Column int
}

// Merge returns a span covering both a and b. The reporting position stays
// a's.
func (s Span) Merge(other Span) Span {
	return Span{
		Start:  min(s.Start, other.Start),
		End:    max(s.End, other.End),
		Line:   s.Line,
		Column: s.Column,
	}
}

// Len returns the number of bytes covered by the span.
func (s Span) Len() int {
	return s.End - s.Start
}

func (s Span) String() string {
	return fmt.Sprintf("%d:%d", s.Line, s.Column)
}
