package pqm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpanMerge(t *testing.T) {
	a := Span{Start: 10, End: 15, Line: 2, Column: 3}
	b := Span{Start: 4, End: 12, Line: 1, Column: 5}

	merged := a.Merge(b)
	assert.Equal(t, 4, merged.Start)
	assert.Equal(t, 15, merged.End)
	assert.Equal(t, 2, merged.Line, "keeps the receiver's position")
	assert.Equal(t, 3, merged.Column)

	merged = b.Merge(a)
	assert.Equal(t, Span{Start: 4, End: 15, Line: 1, Column: 5}, merged)
	assert.Equal(t, 11, merged.Len())
	assert.Equal(t, "1:5", merged.String())
}
