package utils

import (
	"sort"
	"strconv"
	"strings"
)

// ParsePageSelection expands a page-selection string against a document's
// page count. Supported forms: "all", single pages ("2"), ranges ("1-3"),
// open-ended ranges ("2-n"), and comma lists of any of those. Pages
// outside 1..totalPages are dropped; the result is sorted and unique.
func ParsePageSelection(selection string, totalPages int) []int {
	if totalPages <= 0 {
		return nil
	}

	selection = strings.ToLower(strings.ReplaceAll(selection, " ", ""))
	if selection == "" || selection == "all" {
		pages := make([]int, totalPages)
		for i := range pages {
			pages[i] = i + 1
		}
		return pages
	}

	set := make(map[int]struct{})
	for _, part := range strings.Split(selection, ",") {
		if part == "" {
			continue
		}
		if start, end, ok := splitRange(part, totalPages); ok {
			for p := start; p <= end; p++ {
				if p >= 1 && p <= totalPages {
					set[p] = struct{}{}
				}
			}
			continue
		}
		if p, err := strconv.Atoi(part); err == nil && p >= 1 && p <= totalPages {
			set[p] = struct{}{}
		}
	}

	pages := make([]int, 0, len(set))
	for p := range set {
		pages = append(pages, p)
	}
	sort.Ints(pages)
	return pages
}

func splitRange(part string, totalPages int) (int, int, bool) {
	start, end, found := strings.Cut(part, "-")
	if !found {
		return 0, 0, false
	}
	s, err := strconv.Atoi(start)
	if err != nil {
		return 0, 0, false
	}
	e := totalPages
	if end != "n" {
		if e, err = strconv.Atoi(end); err != nil {
			return 0, 0, false
		}
	}
	if e > totalPages {
		e = totalPages
	}
	if s > e {
		return 0, 0, false
	}
	return s, e, true
}
