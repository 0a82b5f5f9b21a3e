package ui

import (
	"io"
	"net/http"
	"sort"

	"labstats/internal/analysis"
	apperrors "labstats/internal/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// multipartMemory is the in-memory share of a parsed upload; the rest spills to disk
const multipartMemory = 32 << 20

// handleRunStats runs one group comparison on an uploaded table
func (s *Server) handleRunStats(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.options.MaxUploadBytes)
	if err := c.Request.ParseMultipartForm(multipartMemory); err != nil {
		s.logger.Info("[runStats] unreadable upload", zap.Error(err))
		s.writeError(c, apperrors.MissingInput("No CSV uploaded."))
		return
	}

	req := analysis.Request{
		Group:    c.PostForm("group"),
		Value:    c.PostForm("value"),
		Test:     c.PostForm("test"),
		FormKeys: formKeys(c),
	}

	if fh, err := c.FormFile("file"); err == nil {
		f, err := fh.Open()
		if err != nil {
			s.writeError(c, apperrors.Wrap(err, "failed to open upload"))
			return
		}
		payload, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			s.writeError(c, apperrors.MissingInput("No CSV uploaded."))
			return
		}
		req.Filename = fh.Filename
		req.Payload = payload
	}

	report, err := s.pipeline.Run(req)
	if err != nil {
		s.writeError(c, err)
		return
	}

	s.logger.Info("[runStats] analysis complete",
		zap.String("test", report.RequestedTest),
		zap.Strings("groups", report.Groups))
	c.JSON(http.StatusOK, report.Payload())
}

// formKeys lists the non-file form fields in sorted order
func formKeys(c *gin.Context) []string {
	keys := []string{}
	if c.Request.MultipartForm == nil {
		return keys
	}
	for k := range c.Request.MultipartForm.Value {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
