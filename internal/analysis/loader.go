package analysis

import (
	"labstats/adapters/datareadiness/coercer"
	"labstats/domain/dataset"
	apperrors "labstats/internal/errors"
)

// TableReader parses an uploaded payload into a table
type TableReader interface {
	Read(filename string, payload []byte) (*dataset.Table, error)
}

// Loader validates an upload and reduces it to the cleaned group/value table
type Loader struct {
	reader  TableReader
	coercer *coercer.TypeCoercer
}

// NewLoader creates a loader. A nil coercer uses the default NA tokens.
func NewLoader(reader TableReader, c *coercer.TypeCoercer) *Loader {
	if c == nil {
		c = coercer.NewTypeCoercer(coercer.DefaultCoercionConfig())
	}
	return &Loader{reader: reader, coercer: c}
}

// Load parses the payload, checks both columns exist, coerces the value
// column and drops every row with a missing group or value.
func (l *Loader) Load(filename string, payload []byte, groupColumn, valueColumn string) (*dataset.Cleaned, error) {
	if len(payload) == 0 {
		return nil, apperrors.MissingInput(msgNoUpload)
	}
	if groupColumn == "" || valueColumn == "" {
		return nil, apperrors.MissingInput(msgMissingParams)
	}

	table, err := l.reader.Read(filename, payload)
	if err != nil {
		return nil, apperrors.ParseError(err)
	}

	gi, okGroup := table.ColumnIndex(groupColumn)
	vi, okValue := table.ColumnIndex(valueColumn)
	if !okGroup || !okValue {
		columns := append([]string{}, table.Columns...)
		return nil, apperrors.ColumnNotFound(columns, groupColumn, valueColumn)
	}

	obs := make([]dataset.Observation, 0, len(table.Rows))
	for _, row := range table.Rows {
		label := row[gi]
		if l.coercer.IsMissing(label) {
			continue
		}
		v := l.coercer.CoerceNumeric(row[vi])
		if v.IsMissing {
			continue
		}
		obs = append(obs, dataset.Observation{Group: label, Value: v.Numeric})
	}

	return dataset.NewCleaned(groupColumn, valueColumn, obs), nil
}
