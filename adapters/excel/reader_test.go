package excel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestReadCSV(t *testing.T) {
	r := NewDataReader(DefaultReaderConfig())

	table, err := r.Read("data.csv", []byte("group,value\nA,1\nA,2\nB,3\n"))
	require.NoError(t, err)

	assert.Equal(t, []string{"group", "value"}, table.Columns)
	assert.Len(t, table.Rows, 3)
	assert.Equal(t, map[string]string{"group": "B", "value": "3"}, table.Row(2))
}

func TestReadCSVPadsShortRowsAndStripsBOM(t *testing.T) {
	r := NewDataReader(DefaultReaderConfig())

	table, err := r.Read("data.csv", []byte("\xef\xbb\xbfgroup,value,extra\nA,1\nB\n"))
	require.NoError(t, err)

	assert.Equal(t, "group", table.Columns[0])
	assert.Equal(t, []string{"A", "1", ""}, table.Rows[0])
	assert.Equal(t, []string{"B", "", ""}, table.Rows[1])
}

func TestReadCSVErrors(t *testing.T) {
	r := NewDataReader(DefaultReaderConfig())

	tests := map[string]string{
		"empty":      "",
		"blank":      "\n\n",
		"long row":   "a,b\n1,2,3\n",
		"bare quote": "a,b\n1,\"x\"y\n",
	}
	for name, payload := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := r.Read("data.csv", []byte(payload))
			assert.Error(t, err)
		})
	}
}

func TestReadCSVHeaderOnly(t *testing.T) {
	r := NewDataReader(DefaultReaderConfig())

	table, err := r.Read("data.csv", []byte("group,value\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"group", "value"}, table.Columns)
	assert.Empty(t, table.Rows)
}

func TestReadCSVMaxRows(t *testing.T) {
	r := NewDataReader(ReaderConfig{MaxRows: 1})

	_, err := r.Read("data.csv", []byte("a\n1\n2\n"))
	assert.Error(t, err)
}

func TestNormalizeHeader(t *testing.T) {
	assert.Equal(t,
		[]string{"a", "a.1", "Unnamed: 2", "a.2", "b"},
		normalizeHeader([]string{"a", "a", "", "a", "b"}))
	assert.Equal(t,
		[]string{"a", "a.1", "a.2"},
		normalizeHeader([]string{"a", "a.1", "a"}))
	// header text is kept verbatim apart from blanks
	assert.Equal(t, []string{" value "}, normalizeHeader([]string{" value "}))
}

func TestFileType(t *testing.T) {
	assert.Equal(t, "xlsx", FileType("book.XLSX", nil))
	assert.Equal(t, "csv", FileType("data.csv", []byte("PK\x03\x04")))
	assert.Equal(t, "xlsx", FileType("upload", []byte("PK\x03\x04rest")))
	assert.Equal(t, "csv", FileType("", []byte("a,b")))
}

func TestReadExcel(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	cells := map[string]interface{}{
		"A1": "group", "B1": "value",
		"A2": "A", "B2": 1.5,
		"A3": "B", // value left blank
		"A4": "B", "B4": 3,
	}
	for cell, v := range cells {
		require.NoError(t, f.SetCellValue("Sheet1", cell, v))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	r := NewDataReader(DefaultReaderConfig())
	table, err := r.Read("book.xlsx", buf.Bytes())
	require.NoError(t, err)

	assert.Equal(t, []string{"group", "value"}, table.Columns)
	require.Len(t, table.Rows, 3)
	assert.Equal(t, []string{"A", "1.5"}, table.Rows[0])
	assert.Equal(t, []string{"B", ""}, table.Rows[1])
	assert.Equal(t, []string{"B", "3"}, table.Rows[2])
}

func TestReadExcelRejectsGarbage(t *testing.T) {
	r := NewDataReader(DefaultReaderConfig())
	_, err := r.Read("book.xlsx", []byte("not a zip"))
	assert.Error(t, err)
}
