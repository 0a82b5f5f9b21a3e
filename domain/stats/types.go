package stats

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// ============================================================================
// TEST KINDS
// ============================================================================

// TestKind identifies the requested statistical comparison
type TestKind string

const (
	TestTwoSample            TestKind = "ttest"   // Welch's two-sample t-test
	TestOmnibusParametric    TestKind = "anova"   // One-way ANOVA + Tukey HSD
	TestOmnibusNonparametric TestKind = "kruskal" // Kruskal–Wallis + Dunn/Bonferroni
)

// ValidTestKinds lists the accepted identifiers in display order
var ValidTestKinds = []TestKind{TestTwoSample, TestOmnibusParametric, TestOmnibusNonparametric}

// ParseTestKind normalizes a raw identifier (trimmed, case-insensitive)
func ParseTestKind(raw string) (TestKind, bool) {
	k := TestKind(strings.ToLower(strings.TrimSpace(raw)))
	for _, valid := range ValidTestKinds {
		if k == valid {
			return k, true
		}
	}
	return k, false
}

// NormalCI95 is the two-sided 95% normal quantile used for descriptive intervals.
// Intervals are mean ± NormalCI95·SEM regardless of sample size.
const NormalCI95 = 1.96

// FWER is the family-wise error rate for Tukey's HSD
const FWER = 0.05

// ============================================================================
// JSON FLOAT
// ============================================================================

// Float is a float64 that encodes NaN and ±Inf as JSON null
type Float float64

// MarshalJSON implements json.Marshaler
func (f Float) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, v, 'g', -1, 64), nil
}

// ============================================================================
// DESCRIPTIVES
// ============================================================================

// Descriptive is the summary of one group
type Descriptive struct {
	Group  string `json:"Group"`
	Mean   Float  `json:"mean"`
	StdDev Float  `json:"std"`
	N      int    `json:"n"`
	SEM    Float  `json:"sem"`
	CILow  Float  `json:"ci95_lo"`
	CIHigh Float  `json:"ci95_hi"`
}

// ============================================================================
// TEST RESULTS
// ============================================================================

// TestResult is the variant produced by the dispatcher for one test kind
type TestResult interface {
	// Kind returns the identifier that produced the result
	Kind() TestKind
	// Name is the human-readable test name reported as "test"
	Name() string
	// Fields returns the test-specific payload entries
	Fields() map[string]interface{}
}

// WelchResult holds Welch's t-test output
type WelchResult struct {
	T  float64
	DF float64
	P  float64
}

func (r *WelchResult) Kind() TestKind { return TestTwoSample }
func (r *WelchResult) Name() string   { return "Welch t-test" }

func (r *WelchResult) Fields() map[string]interface{} {
	return map[string]interface{}{
		"t": Float(r.T),
		"p": Float(r.P),
	}
}

// AnovaResult holds the ANOVA table and the Tukey HSD follow-up
type AnovaResult struct {
	Table   AnovaTable
	Formula string
	Tukey   *TukeyHSD
}

func (r *AnovaResult) Kind() TestKind { return TestOmnibusParametric }
func (r *AnovaResult) Name() string   { return "One-way ANOVA" }

func (r *AnovaResult) Fields() map[string]interface{} {
	out := map[string]interface{}{
		"anova": r.Table,
	}
	if r.Tukey != nil {
		out["tukey"] = r.Tukey.Summary()
	}
	return out
}

// KruskalResult holds the Kruskal–Wallis statistic and Dunn's follow-up
type KruskalResult struct {
	H    float64
	DF   int
	P    float64
	Dunn *DunnMatrix
}

func (r *KruskalResult) Kind() TestKind { return TestOmnibusNonparametric }
func (r *KruskalResult) Name() string   { return "Kruskal–Wallis" }

func (r *KruskalResult) Fields() map[string]interface{} {
	out := map[string]interface{}{
		"H": Float(r.H),
		"p": Float(r.P),
	}
	if r.Dunn != nil {
		out["dunn"] = r.Dunn
	}
	return out
}

// ============================================================================
// ANOVA TABLE
// ============================================================================

// ResidualTerm labels the error row of an ANOVA table
const ResidualTerm = "Residual"

// AnovaRow is one line of an analysis-of-variance table
type AnovaRow struct {
	Term   string
	SumSq  float64
	DF     float64
	F      float64 // NaN on the residual row
	PValue float64 // NaN on the residual row
}

// AnovaTable is encoded column-major: {"sum_sq": {term: v}, "df": …, "F": …, "PR(>F)": …}
type AnovaTable struct {
	Rows []AnovaRow
}

// Row returns the row for a term
func (t AnovaTable) Row(term string) (AnovaRow, bool) {
	for _, r := range t.Rows {
		if r.Term == term {
			return r, true
		}
	}
	return AnovaRow{}, false
}

// MarshalJSON implements json.Marshaler
func (t AnovaTable) MarshalJSON() ([]byte, error) {
	cols := map[string]map[string]Float{
		"sum_sq": {},
		"df":     {},
		"F":      {},
		"PR(>F)": {},
	}
	for _, r := range t.Rows {
		cols["sum_sq"][r.Term] = Float(r.SumSq)
		cols["df"][r.Term] = Float(r.DF)
		cols["F"][r.Term] = Float(r.F)
		cols["PR(>F)"][r.Term] = Float(r.PValue)
	}
	return json.Marshal(cols)
}

// ============================================================================
// POST-HOC
// ============================================================================

// TukeyComparison is one pairwise line of Tukey's HSD
type TukeyComparison struct {
	Group1   string
	Group2   string
	MeanDiff float64
	PAdj     float64
	Lower    float64
	Upper    float64
	Reject   bool
}

// TukeyHSD is the full pairwise table
type TukeyHSD struct {
	Alpha       float64
	QCrit       float64
	DF          float64
	Comparisons []TukeyComparison
}

// Summary renders the table as fixed-width text
func (t *TukeyHSD) Summary() string {
	header := []string{"group1", "group2", "meandiff", "p-adj", "lower", "upper", "reject"}
	rows := make([][]string, 0, len(t.Comparisons))
	for _, c := range t.Comparisons {
		rows = append(rows, []string{
			c.Group1,
			c.Group2,
			formatRounded(c.MeanDiff),
			formatRounded(c.PAdj),
			formatRounded(c.Lower),
			formatRounded(c.Upper),
			strconv.FormatBool(c.Reject),
		})
	}

	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = len(h)
	}
	for _, r := range rows {
		for i, cell := range r {
			if n := len([]rune(cell)); n > widths[i] {
				widths[i] = n
			}
		}
	}
	lineWidth := len(widths) - 1
	for _, w := range widths {
		lineWidth += w
	}

	var b strings.Builder
	b.WriteString("Multiple Comparison of Means - Tukey HSD, FWER=")
	b.WriteString(strconv.FormatFloat(t.Alpha, 'f', 2, 64))
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", lineWidth))
	b.WriteString("\n")
	writeRow(&b, header, widths)
	b.WriteString(strings.Repeat("-", lineWidth))
	b.WriteString("\n")
	for _, r := range rows {
		writeRow(&b, r, widths)
	}
	b.WriteString(strings.Repeat("-", lineWidth))
	return b.String()
}

func writeRow(b *strings.Builder, cells []string, widths []int) {
	for i, cell := range cells {
		if i > 0 {
			b.WriteString(" ")
		}
		b.WriteString(strings.Repeat(" ", widths[i]-len([]rune(cell))))
		b.WriteString(cell)
	}
	b.WriteString("\n")
}

func formatRounded(v float64) string {
	if math.IsNaN(v) {
		return "nan"
	}
	r := math.Round(v*1e4) / 1e4
	if r == math.Trunc(r) && math.Abs(r) < 1e15 {
		return strconv.FormatFloat(r, 'f', 1, 64)
	}
	return strconv.FormatFloat(r, 'f', -1, 64)
}

// DunnMatrix holds Bonferroni-adjusted pairwise p-values, symmetric with 1 on the diagonal
type DunnMatrix struct {
	Groups []string
	P      [][]float64
}

// Get returns the adjusted p-value for a pair of labels
func (m *DunnMatrix) Get(a, b string) (float64, bool) {
	i, j := -1, -1
	for k, g := range m.Groups {
		if g == a {
			i = k
		}
		if g == b {
			j = k
		}
	}
	if i < 0 || j < 0 {
		return 0, false
	}
	return m.P[i][j], true
}

// MarshalJSON implements json.Marshaler as {column: {row: p}}
func (m *DunnMatrix) MarshalJSON() ([]byte, error) {
	out := make(map[string]map[string]Float, len(m.Groups))
	for j, col := range m.Groups {
		inner := make(map[string]Float, len(m.Groups))
		for i, row := range m.Groups {
			inner[row] = Float(m.P[i][j])
		}
		out[col] = inner
	}
	return json.Marshal(out)
}

// ============================================================================
// REPORT
// ============================================================================

// Report is the successful outcome of one analysis request
type Report struct {
	Groups        []string
	NByGroup      map[string]int
	Descriptives  []Descriptive
	RequestedTest string
	Result        TestResult
}

// Payload merges structure, descriptives and test output into one response body
func (r *Report) Payload() map[string]interface{} {
	out := map[string]interface{}{
		"ok":             true,
		"groups":         r.Groups,
		"n_by_group":     r.NByGroup,
		"descriptives":   r.Descriptives,
		"requested_test": r.RequestedTest,
	}
	if r.Result != nil {
		out["test"] = r.Result.Name()
		for k, v := range r.Result.Fields() {
			out[k] = v
		}
	}
	return out
}
