// Package paginate slices ordered post sequences into fixed-size pages.
//
// Page numbers are 1-based. A missing, non-numeric or non-positive page
// request means page 1, and a request past the last page is clamped to the
// last page, so a non-empty sequence never yields an empty page.
package paginate

import "strconv"

// PerPage is the number of posts shown on every feed page.
const PerPage = 10

type Page struct {
	Number   int
	NumPages int
	Total    int
	PerPage  int
}

// ParseNumber turns a raw ?page= value into a requested page number.
func ParseNumber(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 1
	}
	return n
}

// New computes the page covering requested for a sequence of total items.
func New(total, requested, perPage int) Page {
	if perPage <= 0 {
		perPage = PerPage
	}
	if total < 0 {
		total = 0
	}

	numPages := (total + perPage - 1) / perPage
	if numPages < 1 {
		numPages = 1
	}

	number := requested
	if number <= 0 {
		number = 1
	}
	if number > numPages {
		number = numPages
	}

	return Page{Number: number, NumPages: numPages, Total: total, PerPage: perPage}
}

func (p Page) Offset() int {
	return (p.Number - 1) * p.PerPage
}

func (p Page) Limit() int {
	return p.PerPage
}

func (p Page) HasPrevious() bool { return p.Number > 1 }

func (p Page) HasNext() bool { return p.Number < p.NumPages }

func (p Page) PreviousNumber() int {
	if !p.HasPrevious() {
		return p.Number
	}
	return p.Number - 1
}

func (p Page) NextNumber() int {
	if !p.HasNext() {
		return p.Number
	}
	return p.Number + 1
}

// Numbers lists every page number, for rendering the page links.
func (p Page) Numbers() []int {
	nums := make([]int, p.NumPages)
	for i := range nums {
		nums[i] = i + 1
	}
	return nums
}

// Slice returns the part of items that falls on page p.
func Slice[T any](items []T, p Page) []T {
	start := p.Offset()
	if start >= len(items) {
		return items[len(items):]
	}
	end := start + p.Limit()
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// Paginate is New followed by Slice for an in-memory sequence.
func Paginate[T any](items []T, requested, perPage int) ([]T, Page) {
	p := New(len(items), requested, perPage)
	return Slice(items, p), p
}
