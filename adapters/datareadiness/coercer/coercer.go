package coercer

import (
	"math"
	"strconv"
	"strings"
)

// Value is the result of coercing one cell: a number or the missing marker
type Value struct {
	Numeric   float64
	IsMissing bool
}

// NewNumericValue creates a present numeric value
func NewNumericValue(n float64) Value {
	return Value{Numeric: n}
}

// NewMissingValue creates the missing marker
func NewMissingValue() Value {
	return Value{IsMissing: true}
}

// CoercionConfig defines which raw cells count as missing
type CoercionConfig struct {
	// NATokens are cell contents read as missing regardless of column
	NATokens []string `json:"na_tokens"`
	// AllowInfinite keeps ±Inf as numbers instead of missing
	AllowInfinite bool `json:"allow_infinite"`
}

// DefaultNATokens mirrors the usual spreadsheet and dataframe spellings of "no value"
var DefaultNATokens = []string{
	"", "#N/A", "#N/A N/A", "#NA", "-1.#IND", "-1.#QNAN", "-NaN", "-nan",
	"1.#IND", "1.#QNAN", "<NA>", "N/A", "NA", "NULL", "NaN", "None",
	"n/a", "nan", "null",
}

// DefaultCoercionConfig returns sensible defaults
func DefaultCoercionConfig() CoercionConfig {
	return CoercionConfig{
		NATokens:      DefaultNATokens,
		AllowInfinite: false,
	}
}

// TypeCoercer performs non-throwing coercion of raw cells
type TypeCoercer struct {
	config   CoercionConfig
	naTokens map[string]struct{}
}

// NewTypeCoercer creates a coercer with the given config
func NewTypeCoercer(config CoercionConfig) *TypeCoercer {
	tokens := make(map[string]struct{}, len(config.NATokens))
	for _, t := range config.NATokens {
		tokens[t] = struct{}{}
	}
	return &TypeCoercer{config: config, naTokens: tokens}
}

// IsMissing reports whether a raw cell is an NA token
func (c *TypeCoercer) IsMissing(raw string) bool {
	_, ok := c.naTokens[raw]
	if ok {
		return true
	}
	_, ok = c.naTokens[strings.TrimSpace(raw)]
	return ok
}

// CoerceNumeric converts a raw cell to a number; anything unparseable becomes missing
func (c *TypeCoercer) CoerceNumeric(raw string) Value {
	if c.IsMissing(raw) {
		return NewMissingValue()
	}
	v, ok := c.tryParseNumeric(raw)
	if !ok {
		return NewMissingValue()
	}
	return NewNumericValue(v)
}

// tryParseNumeric parses decimal and scientific notation after trimming whitespace.
// Thousands separators, currency symbols and percent signs are not accepted.
func (c *TypeCoercer) tryParseNumeric(strVal string) (float64, bool) {
	cleanVal := strings.TrimSpace(strVal)
	if cleanVal == "" {
		return 0, false
	}

	val, err := strconv.ParseFloat(cleanVal, 64)
	if err != nil {
		// ParseFloat reports out-of-range values as ±Inf with ErrRange
		if numErr, ok := err.(*strconv.NumError); !ok || numErr.Err != strconv.ErrRange {
			return 0, false
		}
	}
	if math.IsNaN(val) {
		return 0, false
	}
	if math.IsInf(val, 0) && !c.config.AllowInfinite {
		return 0, false
	}
	return val, true
}
