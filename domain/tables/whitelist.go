package tables

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// TimestampColumn is appended to every stored row
const TimestampColumn = "_ts"

// TimestampLayout is local time at second precision
const TimestampLayout = "2006-01-02T15:04:05"

// FileExt is the extension under which tables are listed and downloaded
const FileExt = ".csv"

// Whitelist maps each appendable table to its ordered column list
type Whitelist struct {
	columns map[string][]string
}

// Default returns the lab tables: animal log, notebook and meeting notes
func Default() *Whitelist {
	return New(map[string][]string{
		"animal_log":    {"date", "mouse_id", "strain", "sex", "dob", "age_wk", "treatment", "weight_g", "notes"},
		"lab_notebook":  {"date", "title", "experiment_id", "project", "tags", "body_md", "links", "author", "notes"},
		"meeting_notes": {"date", "title", "attendees", "project", "agenda", "decisions", "actions", "owner", "next_meeting"},
	})
}

// New copies a table → columns mapping
func New(columns map[string][]string) *Whitelist {
	w := &Whitelist{columns: make(map[string][]string, len(columns))}
	for name, cols := range columns {
		w.columns[name] = append([]string(nil), cols...)
	}
	return w
}

// Validate rejects empty definitions, duplicate columns, and names unusable as file names
func (w *Whitelist) Validate() error {
	if len(w.columns) == 0 {
		return fmt.Errorf("no tables defined")
	}
	for name, cols := range w.columns {
		if name == "" || strings.ContainsAny(name, `/\.`) {
			return fmt.Errorf("invalid table name %q", name)
		}
		if len(cols) == 0 {
			return fmt.Errorf("table %q has no columns", name)
		}
		seen := make(map[string]bool, len(cols))
		for _, c := range cols {
			if c == "" || c == TimestampColumn || seen[c] {
				return fmt.Errorf("table %q: invalid or duplicate column %q", name, c)
			}
			seen[c] = true
		}
	}
	return nil
}

// Names returns the table names in sorted order
func (w *Whitelist) Names() []string {
	names := make([]string, 0, len(w.columns))
	for n := range w.columns {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Columns returns the whitelisted columns of a table
func (w *Whitelist) Columns(table string) ([]string, bool) {
	cols, ok := w.columns[table]
	return cols, ok
}

// Header is the stored column order: whitelisted columns then the timestamp
func (w *Whitelist) Header(table string) ([]string, bool) {
	cols, ok := w.columns[table]
	if !ok {
		return nil, false
	}
	return append(append([]string(nil), cols...), TimestampColumn), true
}

// TableForFile maps "<table>.csv" back to a whitelisted table
func (w *Whitelist) TableForFile(name string) (string, bool) {
	if !strings.HasSuffix(name, FileExt) {
		return "", false
	}
	table := strings.TrimSuffix(name, FileExt)
	_, ok := w.columns[table]
	return table, ok
}

// Record projects a submitted row onto the table's header. Unknown keys are
// dropped, absent or null values become "", and the timestamp is stamped from now.
func (w *Whitelist) Record(table string, row map[string]interface{}, now time.Time) ([]string, error) {
	cols, ok := w.columns[table]
	if !ok {
		return nil, fmt.Errorf("unknown csv_name: %s", table)
	}
	record := make([]string, 0, len(cols)+1)
	for _, c := range cols {
		record = append(record, Stringify(row[c]))
	}
	record = append(record, now.Format(TimestampLayout))
	return record, nil
}

// Stringify renders a decoded JSON value as a cell
func Stringify(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case fmt.Stringer:
		return x.String()
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}
