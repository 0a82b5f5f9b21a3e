// Package formula builds model formulas for one-way designs from arbitrary
// column names.
//
// A column name is embedded as Q('<name>'): inside the single quotes every
// backslash and single quote is escaped with a backslash, and nothing else is
// altered, so whitespace, operators (~ + - * : ( )) and non-ASCII text pass
// through literally. Unquote reverses Quote exactly. Categorical factors are
// wrapped as C(Q('<name>')). The factor term string doubles as the row label
// of the ANOVA table.
package formula

import (
	"fmt"
	"strings"
)

const (
	quotePrefix  = "Q('"
	quoteSuffix  = "')"
	factorPrefix = "C("
	factorSuffix = ")"
)

// Quote embeds a column name as a quoted variable reference
func Quote(name string) string {
	var b strings.Builder
	b.Grow(len(name) + len(quotePrefix) + len(quoteSuffix) + 4)
	b.WriteString(quotePrefix)
	for _, r := range name {
		if r == '\\' || r == '\'' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteString(quoteSuffix)
	return b.String()
}

// Unquote recovers the column name from a Quote result
func Unquote(ref string) (string, error) {
	if !strings.HasPrefix(ref, quotePrefix) || !strings.HasSuffix(ref, quoteSuffix) || len(ref) < len(quotePrefix)+len(quoteSuffix) {
		return "", fmt.Errorf("not a quoted reference: %q", ref)
	}
	body := ref[len(quotePrefix) : len(ref)-len(quoteSuffix)]

	var b strings.Builder
	escaped := false
	for _, r := range body {
		switch {
		case escaped:
			if r != '\\' && r != '\'' {
				return "", fmt.Errorf("invalid escape \\%c in %q", r, ref)
			}
			b.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == '\'':
			return "", fmt.Errorf("unescaped quote in %q", ref)
		default:
			b.WriteRune(r)
		}
	}
	if escaped {
		return "", fmt.Errorf("dangling escape in %q", ref)
	}
	return b.String(), nil
}

// Factor wraps a column as a categorical term
func Factor(name string) string {
	return factorPrefix + Quote(name) + factorSuffix
}

// FactorName recovers the column name from a Factor term
func FactorName(term string) (string, error) {
	if !strings.HasPrefix(term, factorPrefix) || !strings.HasSuffix(term, factorSuffix) {
		return "", fmt.Errorf("not a factor term: %q", term)
	}
	return Unquote(term[len(factorPrefix) : len(term)-len(factorSuffix)])
}

// OneWay is a response ~ categorical factor model specification
type OneWay struct {
	Response string
	Factor   string
}

// NewOneWay builds the model for a value column explained by a group column
func NewOneWay(valueColumn, groupColumn string) OneWay {
	return OneWay{Response: valueColumn, Factor: groupColumn}
}

// Term returns the factor term label
func (m OneWay) Term() string {
	return Factor(m.Factor)
}

// String renders the full formula
func (m OneWay) String() string {
	return Quote(m.Response) + " ~ " + m.Term()
}

// Parse reads a formula produced by OneWay.String
func Parse(s string) (OneWay, error) {
	// The separator cannot occur inside a quoted name without being part of the
	// quoted body, so split at the first " ~ C(Q('" boundary after a closing quote.
	const sep = quoteSuffix + " ~ " + factorPrefix
	idx := -1
	for from := 0; ; {
		i := strings.Index(s[from:], sep)
		if i < 0 {
			break
		}
		candidate := from + i
		if _, err := Unquote(s[:candidate+len(quoteSuffix)]); err == nil {
			idx = candidate
			break
		}
		from = candidate + 1
	}
	if idx < 0 {
		return OneWay{}, fmt.Errorf("not a one-way formula: %q", s)
	}

	response, err := Unquote(s[:idx+len(quoteSuffix)])
	if err != nil {
		return OneWay{}, err
	}
	factor, err := FactorName(s[idx+len(quoteSuffix)+len(" ~ "):])
	if err != nil {
		return OneWay{}, err
	}
	return OneWay{Response: response, Factor: factor}, nil
}
