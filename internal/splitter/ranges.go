package splitter

import (
	"fmt"
	"strconv"
)

// SeparatorSet holds the 1-based ordinals of marker pages in ascending order.
type SeparatorSet []int

// Validate checks that the set is strictly increasing and inside [1, total].
func (s SeparatorSet) Validate(total int) error {
	prev := 0
	for i, p := range s {
		if p < 1 || p > total {
			return fmt.Errorf("separator %d: page %d out of range (1-%d)", i, p, total)
		}
		if p <= prev {
			return fmt.Errorf("separator %d: page %d not after %d", i, p, prev)
		}
		prev = p
	}
	return nil
}

// ContentRange is a closed, 1-based page interval. Start > End marks a range
// with no pages, which happens between adjacent markers or when a marker
// sits on the first or last page.
type ContentRange struct {
	Start int
	End   int
}

// Empty reports whether the range holds no pages.
func (r ContentRange) Empty() bool { return r.Start > r.End }

// Len returns the number of pages in the range.
func (r ContentRange) Len() int {
	if r.Empty() {
		return 0
	}
	return r.End - r.Start + 1
}

// Pages lists the ordinals of the range in ascending order.
func (r ContentRange) Pages() []int {
	pages := make([]int, 0, r.Len())
	for p := r.Start; p <= r.End; p++ {
		pages = append(pages, p)
	}
	return pages
}

// Selection renders the range as a page selection ("4" or "2-3").
func (r ContentRange) Selection() string {
	if r.Start == r.End {
		return strconv.Itoa(r.Start)
	}
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

func (r ContentRange) String() string {
	if r.Empty() {
		return "empty"
	}
	return r.Selection()
}

// ComputeRanges turns marker positions into the content ranges between them.
// With boundaries [0, s1, ..., sn, total+1] it emits (a+1 .. b-1) for every
// adjacent pair, so the result always has len(seps)+1 entries in page order,
// empty ranges included.
func ComputeRanges(seps SeparatorSet, total int) []ContentRange {
	ranges := make([]ContentRange, 0, len(seps)+1)
	prev := 0
	for _, s := range seps {
		ranges = append(ranges, ContentRange{Start: prev + 1, End: s - 1})
		prev = s
	}
	return append(ranges, ContentRange{Start: prev + 1, End: total})
}
