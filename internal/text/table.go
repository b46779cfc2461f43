package text

import (
	"sort"
	"strings"
)

// Table sifts values out of plain-text tables, the kind pdftotext
// -layout produces for attendance lists. Column edges are inferred from
// the most frequent runs of two or more spaces across all lines.
// Positions are counted in runes; the source text is Greek.
type Table struct {
	lines   [][]rune
	maxCols int
}

// NewTable wraps a block of column-aligned text. maxCols caps how many
// columns edge detection may infer.
func NewTable(s string, maxCols int) *Table {
	if maxCols <= 0 {
		maxCols = 3
	}
	var lines [][]rune
	for _, line := range strings.Split(s, "\n") {
		lines = append(lines, []rune(strings.TrimLeft(line, " \t")))
	}
	return &Table{lines: lines, maxCols: maxCols}
}

// gapEnds returns the rune index just past every run of two or more
// spaces in a line.
func gapEnds(line []rune) []int {
	var out []int
	run := 0
	for i, r := range line {
		if r == ' ' || r == '\t' {
			run++
			continue
		}
		if run >= 2 {
			out = append(out, i)
		}
		run = 0
	}
	return out
}

// colModes returns the leading edges of the maxCols most common columns.
func (t *Table) colModes() []int {
	freq := map[int]int{}
	for _, line := range t.lines {
		for _, i := range gapEnds(line) {
			freq[i]++
		}
	}
	idxs := make([]int, 0, len(freq))
	for i := range freq {
		idxs = append(idxs, i)
	}
	// Most frequent first; break ties on the lower index.
	sort.Slice(idxs, func(a, b int) bool {
		if freq[idxs[a]] != freq[idxs[b]] {
			return freq[idxs[a]] > freq[idxs[b]]
		}
		return idxs[a] < idxs[b]
	})
	if len(idxs) > t.maxCols-1 {
		idxs = idxs[:t.maxCols-1]
	}
	cols := append([]int{0}, idxs...)
	sort.Ints(cols)
	return cols
}

// Rows produces the cols-within-a-row matrix, dropping rows with any
// blank cell.
func (t *Table) Rows() [][]string {
	cols := t.colModes()
	var out [][]string
	for _, line := range t.lines {
		row := sliceLine(line, cols)
		if allNonEmpty(row) {
			out = append(out, row)
		}
	}
	return out
}

// Values parses all cell values linearly, dropping empty strings.
func (t *Table) Values() []string {
	cols := t.colModes()
	var out []string
	for _, line := range t.lines {
		for _, cell := range sliceLine(line, cols) {
			if cell != "" {
				out = append(out, cell)
			}
		}
	}
	return out
}

func sliceLine(line []rune, cols []int) []string {
	out := make([]string, 0, len(cols))
	for i, start := range cols {
		end := len(line)
		if i+1 < len(cols) {
			end = cols[i+1]
		}
		if start > len(line) {
			out = append(out, "")
			continue
		}
		if end > len(line) {
			end = len(line)
		}
		out = append(out, strings.TrimSpace(string(line[start:end])))
	}
	return out
}

func allNonEmpty(row []string) bool {
	for _, cell := range row {
		if cell == "" {
			return false
		}
	}
	return len(row) > 0
}
