package dataset

import (
	"sort"
	"strconv"
)

// Table is an uploaded tabular payload held in memory for one request.
// Every row has exactly len(Columns) cells; absent cells are empty strings.
type Table struct {
	Columns []string
	Rows    [][]string
}

// ColumnIndex returns the position of a column in the header
func (t *Table) ColumnIndex(name string) (int, bool) {
	for i, c := range t.Columns {
		if c == name {
			return i, true
		}
	}
	return -1, false
}

// Row returns row i as a column-name keyed mapping
func (t *Table) Row(i int) map[string]string {
	out := make(map[string]string, len(t.Columns))
	for j, c := range t.Columns {
		out[c] = t.Rows[i][j]
	}
	return out
}

// Observation is one cleaned row of the two-column working table
type Observation struct {
	Group string
	Value float64
}

// Cleaned is the working table after column restriction, coercion and missing-value drop
type Cleaned struct {
	GroupColumn  string
	ValueColumn  string
	Observations []Observation

	// Groups lists distinct group labels in order of first appearance
	Groups []string
	// Counts maps each group label to its row count after cleaning
	Counts map[string]int
}

// NewCleaned builds the group list and counts from observations
func NewCleaned(groupColumn, valueColumn string, obs []Observation) *Cleaned {
	c := &Cleaned{
		GroupColumn:  groupColumn,
		ValueColumn:  valueColumn,
		Observations: obs,
		Groups:       []string{},
		Counts:       make(map[string]int),
	}
	for _, o := range obs {
		if _, seen := c.Counts[o.Group]; !seen {
			c.Groups = append(c.Groups, o.Group)
		}
		c.Counts[o.Group]++
	}
	return c
}

// Len returns the number of cleaned rows
func (c *Cleaned) Len() int {
	return len(c.Observations)
}

// Values returns the values of one group in row order
func (c *Cleaned) Values(group string) []float64 {
	out := make([]float64, 0, c.Counts[group])
	for _, o := range c.Observations {
		if o.Group == group {
			out = append(out, o.Value)
		}
	}
	return out
}

// Samples returns every group's values keyed by label
func (c *Cleaned) Samples() map[string][]float64 {
	out := make(map[string][]float64, len(c.Groups))
	for _, o := range c.Observations {
		out[o.Group] = append(out[o.Group], o.Value)
	}
	return out
}

// SortedGroups returns the group labels in factor-level order
func (c *Cleaned) SortedGroups() []string {
	return SortLabels(c.Groups)
}

// SortLabels orders labels numerically when every label parses as a number,
// lexically otherwise. The input slice is not modified.
func SortLabels(labels []string) []string {
	out := append([]string(nil), labels...)
	nums := make(map[string]float64, len(out))
	numeric := true
	for _, l := range out {
		v, err := strconv.ParseFloat(l, 64)
		if err != nil {
			numeric = false
			break
		}
		nums[l] = v
	}
	if numeric {
		sort.SliceStable(out, func(i, j int) bool { return nums[out[i]] < nums[out[j]] })
	} else {
		sort.Strings(out)
	}
	return out
}
