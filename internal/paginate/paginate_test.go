package paginate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seq(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func TestParseNumber(t *testing.T) {
	cases := map[string]int{
		"":    1,
		"abc": 1,
		"0":   1,
		"-3":  1,
		"1.5": 1,
		"1":   1,
		"7":   7,
	}
	for raw, want := range cases {
		assert.Equal(t, want, ParseNumber(raw), "raw=%q", raw)
	}
}

func TestNewEmptySequenceHasOnePage(t *testing.T) {
	p := New(0, 1, PerPage)
	assert.Equal(t, 1, p.Number)
	assert.Equal(t, 1, p.NumPages)
	assert.False(t, p.HasPrevious())
	assert.False(t, p.HasNext())
	assert.Empty(t, Slice([]int{}, p))
}

func TestConcatenatedPagesRebuildSequence(t *testing.T) {
	for n := 0; n <= 45; n++ {
		items := seq(n)
		first := New(n, 1, PerPage)

		var rebuilt []int
		for k := 1; k <= first.NumPages; k++ {
			part, page := Paginate(items, k, PerPage)
			require.Equal(t, k, page.Number)
			rebuilt = append(rebuilt, part...)
		}
		if n == 0 {
			assert.Empty(t, rebuilt)
			continue
		}
		assert.Equal(t, items, rebuilt, "n=%d", n)
	}
}

func TestPageZeroAndGarbageEqualPageOne(t *testing.T) {
	items := seq(25)
	one, p1 := Paginate(items, 1, PerPage)
	zero, p0 := Paginate(items, ParseNumber("0"), PerPage)
	junk, pj := Paginate(items, ParseNumber("junk"), PerPage)

	assert.Equal(t, one, zero)
	assert.Equal(t, one, junk)
	assert.Equal(t, p1, p0)
	assert.Equal(t, p1, pj)
}

func TestPastLastPageClamps(t *testing.T) {
	items := seq(23)
	part, p := Paginate(items, 99, PerPage)

	assert.Equal(t, 3, p.Number)
	assert.Equal(t, 3, p.NumPages)
	assert.Equal(t, []int{20, 21, 22}, part)
	assert.True(t, p.HasPrevious())
	assert.False(t, p.HasNext())
}

func TestNavigation(t *testing.T) {
	p := New(30, 2, PerPage)
	assert.Equal(t, 10, p.Offset())
	assert.Equal(t, 10, p.Limit())
	assert.Equal(t, 1, p.PreviousNumber())
	assert.Equal(t, 3, p.NextNumber())
	assert.Equal(t, []int{1, 2, 3}, p.Numbers())

	last := New(30, 3, PerPage)
	assert.Equal(t, 3, last.NextNumber())
}

func TestNewFallsBackToDefaultPageSize(t *testing.T) {
	p := New(11, 2, 0)
	assert.Equal(t, PerPage, p.PerPage)
	assert.Equal(t, 2, p.NumPages)
}
