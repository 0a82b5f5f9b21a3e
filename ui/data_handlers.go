package ui

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"labstats/domain/tables"
	apperrors "labstats/internal/errors"
	"labstats/ports"

	"github.com/gin-gonic/gin"
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// markdownSuffix marks notebook columns rendered to HTML
const markdownSuffix = "_md"

// appendRequest is the JSON body of /append_csv
type appendRequest struct {
	CSVName string          `json:"csv_name"`
	Row     json.RawMessage `json:"row"`
}

// handleAppendCSV appends one row to a whitelisted table.
// Accepts JSON {"csv_name", "row"} or form fields csv_name and row (a JSON string).
func (s *Server) handleAppendCSV(c *gin.Context) {
	name, row, err := decodeAppend(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	if name == "" || row == nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "csv_name and row required"})
		return
	}

	location, err := s.appendLog.Append(c.Request.Context(), name, row)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "path": location})
}

// decodeAppend returns the table name and row. A row that is present but not a
// JSON object comes back nil; an absent row is empty.
func decodeAppend(c *gin.Context) (string, map[string]interface{}, error) {
	var name string
	var raw []byte

	if strings.HasPrefix(c.ContentType(), "application/json") {
		var req appendRequest
		dec := json.NewDecoder(c.Request.Body)
		dec.UseNumber()
		if err := dec.Decode(&req); err != nil {
			return "", nil, fmt.Errorf("invalid JSON body: %w", err)
		}
		name, raw = req.CSVName, req.Row
	} else {
		name = c.PostForm("csv_name")
		if v, ok := c.GetPostForm("row"); ok {
			raw = []byte(v)
		}
	}
	name = strings.TrimSpace(name)

	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return name, map[string]interface{}{}, nil
	}

	var decoded interface{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&decoded); err != nil {
		return "", nil, fmt.Errorf("invalid row: %w", err)
	}
	row, _ := decoded.(map[string]interface{})
	return name, row, nil
}

// handleListData reports every stored table with its row count
func (s *Server) handleListData(c *gin.Context) {
	items, err := s.appendLog.List(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	if items == nil {
		items = []ports.TableInfo{}
	}
	c.JSON(http.StatusOK, items)
}

// handleDownloadCSV streams a stored table as an attachment
func (s *Server) handleDownloadCSV(c *gin.Context) {
	name, ok := csvName(c)
	if !ok {
		return
	}
	data, err := s.readTable(c, name)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Data(http.StatusOK, "text/csv", data)
}

// handleRenderNotebook returns a stored table as JSON rows, adding an HTML
// rendering next to every markdown column
func (s *Server) handleRenderNotebook(c *gin.Context) {
	name, ok := csvName(c)
	if !ok {
		return
	}
	data, err := s.readTable(c, name)
	if err != nil {
		s.writeError(c, err)
		return
	}
	rows, err := notebookRows(data)
	if err != nil {
		s.writeError(c, apperrors.Wrapf(err, "failed to parse %s", name))
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "name": name, "rows": rows})
}

// csvName validates ?name=<file>.csv and writes the 400 itself when invalid
func csvName(c *gin.Context) (string, bool) {
	name := c.Query("name")
	if !strings.HasSuffix(name, tables.FileExt) || strings.ContainsAny(name, `/\`) {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "Specify ?name=<file>.csv"})
		return "", false
	}
	return name, true
}

func (s *Server) readTable(c *gin.Context, name string) ([]byte, error) {
	rc, err := s.appendLog.Open(c.Request.Context(), name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, apperrors.Wrapf(err, "failed to read %s", name)
	}
	return data, nil
}

// notebookRows decodes CSV into header-keyed rows and renders *_md cells
func notebookRows(data []byte) ([]map[string]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	rows := []map[string]string{}
	if len(records) == 0 {
		return rows, nil
	}

	header := records[0]
	for _, record := range records[1:] {
		row := make(map[string]string, len(header)+1)
		for i, col := range header {
			var v string
			if i < len(record) {
				v = record[i]
			}
			row[col] = v
			if strings.HasSuffix(col, markdownSuffix) {
				row[col+"_html"] = renderMarkdown(v)
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// renderMarkdown converts one notebook cell to HTML
func renderMarkdown(md string) string {
	if md == "" {
		return ""
	}
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	renderer := html.NewRenderer(html.RendererOptions{
		Flags: html.CommonFlags | html.HrefTargetBlank | html.SkipHTML,
	})
	return string(markdown.ToHTML([]byte(md), p, renderer))
}
