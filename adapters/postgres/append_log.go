package postgres

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"labstats/domain/tables"
	apperrors "labstats/internal/errors"
	"labstats/ports"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// AppendLogRepository stores appended rows in the append_log table
type AppendLogRepository struct {
	db        *sqlx.DB
	whitelist *tables.Whitelist
	now       func() time.Time
	logger    *zap.Logger
}

// NewAppendLogRepository creates a PostgreSQL append log
func NewAppendLogRepository(db *sqlx.DB, whitelist *tables.Whitelist, logger *zap.Logger) *AppendLogRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AppendLogRepository{db: db, whitelist: whitelist, now: time.Now, logger: logger}
}

var _ ports.AppendLog = (*AppendLogRepository)(nil)

type tableCount struct {
	TableName string `db:"table_name"`
	RowCount  int    `db:"row_count"`
}

// Append inserts one row and returns its location as append_log/<table>/<id>
func (r *AppendLogRepository) Append(ctx context.Context, table string, row map[string]interface{}) (string, error) {
	header, ok := r.whitelist.Header(table)
	if !ok {
		return "", apperrors.InvalidInput("Unknown csv_name: " + table)
	}
	now := r.now()
	record, err := r.whitelist.Record(table, row, now)
	if err != nil {
		return "", apperrors.InvalidInput(err.Error())
	}

	doc, err := encodeRecord(header, record)
	if err != nil {
		return "", apperrors.Wrap(err, "failed to encode row")
	}

	var id int64
	err = r.db.QueryRowxContext(ctx, `
		INSERT INTO append_log (table_name, payload, ts)
		VALUES ($1, $2, $3)
		RETURNING id
	`, table, string(doc), now).Scan(&id)
	if err != nil {
		return "", apperrors.Wrap(err, "failed to append row")
	}

	r.logger.Info("[postgres] row appended", zap.String("table", table), zap.Int64("id", id))
	return fmt.Sprintf("append_log/%s/%d", table, id), nil
}

// List reports row counts for every whitelisted table that has rows
func (r *AppendLogRepository) List(ctx context.Context) ([]ports.TableInfo, error) {
	var counts []tableCount
	err := r.db.SelectContext(ctx, &counts, `
		SELECT table_name, COUNT(*) AS row_count
		FROM append_log
		WHERE table_name = ANY($1)
		GROUP BY table_name
		ORDER BY table_name
	`, pq.Array(r.whitelist.Names()))
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list tables")
	}

	items := make([]ports.TableInfo, 0, len(counts))
	for _, c := range counts {
		n := c.RowCount
		items = append(items, ports.TableInfo{Name: c.TableName + tables.FileExt, Rows: &n})
	}
	return items, nil
}

// Open renders a stored table as CSV in whitelist column order
func (r *AppendLogRepository) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	table, ok := r.whitelist.TableForFile(name)
	if !ok {
		return nil, apperrors.New(apperrors.KindNotFound, "File not found")
	}
	header, _ := r.whitelist.Header(table)

	var docs [][]byte
	err := r.db.SelectContext(ctx, &docs, `
		SELECT payload FROM append_log WHERE table_name = $1 ORDER BY id
	`, table)
	if err != nil {
		return nil, apperrors.Wrapf(err, "failed to read %s", table)
	}
	if len(docs) == 0 {
		return nil, apperrors.New(apperrors.KindNotFound, "File not found")
	}

	body, err := renderCSV(header, docs)
	if err != nil {
		return nil, apperrors.Wrapf(err, "failed to render %s", table)
	}
	return io.NopCloser(bytes.NewReader(body)), nil
}

func encodeRecord(header, record []string) ([]byte, error) {
	doc := make(map[string]string, len(header))
	for i, col := range header {
		doc[col] = record[i]
	}
	return json.Marshal(doc)
}

// renderCSV writes a header followed by one record per stored JSON document
func renderCSV(header []string, docs [][]byte) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	record := make([]string, len(header))
	for _, raw := range docs {
		var doc map[string]interface{}
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, err
		}
		for i, col := range header {
			record[i] = tables.Stringify(doc[col])
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
