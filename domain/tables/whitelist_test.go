package tables

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultWhitelist(t *testing.T) {
	w := Default()
	require.NoError(t, w.Validate())
	assert.Equal(t, []string{"animal_log", "lab_notebook", "meeting_notes"}, w.Names())

	header, ok := w.Header("lab_notebook")
	require.True(t, ok)
	assert.Equal(t, "date", header[0])
	assert.Equal(t, TimestampColumn, header[len(header)-1])

	cols, _ := w.Columns("lab_notebook")
	assert.Len(t, header, len(cols)+1)
}

func TestNewCopiesColumns(t *testing.T) {
	src := map[string][]string{"t": {"a", "b"}}
	w := New(src)
	src["t"][0] = "mutated"
	cols, _ := w.Columns("t")
	assert.Equal(t, []string{"a", "b"}, cols)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		columns map[string][]string
	}{
		{"empty", map[string][]string{}},
		{"path separator", map[string][]string{"../x": {"a"}}},
		{"dotted", map[string][]string{"x.csv": {"a"}}},
		{"no columns", map[string][]string{"x": {}}},
		{"duplicate column", map[string][]string{"x": {"a", "a"}}},
		{"timestamp column", map[string][]string{"x": {"a", TimestampColumn}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, New(tt.columns).Validate())
		})
	}
}

func TestTableForFile(t *testing.T) {
	w := Default()
	table, ok := w.TableForFile("animal_log.csv")
	assert.True(t, ok)
	assert.Equal(t, "animal_log", table)

	_, ok = w.TableForFile("animal_log")
	assert.False(t, ok)
	_, ok = w.TableForFile("other.csv")
	assert.False(t, ok)
}

func TestRecord(t *testing.T) {
	w := New(map[string][]string{"t": {"name", "count", "ok", "tags", "missing"}})
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.Local)

	rec, err := w.Record("t", map[string]interface{}{
		"name":  "x",
		"count": json.Number("3"),
		"ok":    true,
		"tags":  []interface{}{"a", "b"},
		"extra": "ignored",
	}, now)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "3", "true", `["a","b"]`, "", "2024-01-02T03:04:05"}, rec)

	_, err = w.Record("nope", nil, now)
	assert.EqualError(t, err, "unknown csv_name: nope")
}

func TestStringify(t *testing.T) {
	assert.Equal(t, "", Stringify(nil))
	assert.Equal(t, "2.5", Stringify(2.5))
	assert.Equal(t, "100000000", Stringify(1e8))
	assert.Equal(t, "false", Stringify(false))
	assert.Equal(t, `{"k":1}`, Stringify(map[string]interface{}{"k": 1}))
	assert.Equal(t, "1m0s", Stringify(time.Minute))
}
