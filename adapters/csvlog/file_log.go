package csvlog

import (
	"bufio"
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"labstats/domain/tables"
	apperrors "labstats/internal/errors"
	"labstats/ports"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// listConcurrency bounds the number of files counted at once
const listConcurrency = 4

// Config locates the data directory and the root that reported paths are relative to
type Config struct {
	DataDir string
	RootDir string
}

// FileLog appends whitelisted rows to DATA_DIR/<table>.csv
type FileLog struct {
	config    Config
	whitelist *tables.Whitelist
	mu        sync.Locker
	now       func() time.Time
	logger    *zap.Logger
}

// NewFileLog creates a file-backed append log. Every append holds mu, so
// processes sharing a data directory should share one lock.
func NewFileLog(config Config, whitelist *tables.Whitelist, mu sync.Locker, logger *zap.Logger) *FileLog {
	if mu == nil {
		mu = &sync.Mutex{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileLog{
		config:    config,
		whitelist: whitelist,
		mu:        mu,
		now:       time.Now,
		logger:    logger,
	}
}

var _ ports.AppendLog = (*FileLog)(nil)

// Append writes one row, creating the file with a header when it does not exist
func (l *FileLog) Append(ctx context.Context, table string, row map[string]interface{}) (string, error) {
	header, ok := l.whitelist.Header(table)
	if !ok {
		return "", apperrors.InvalidInput("Unknown csv_name: " + table)
	}
	record, err := l.whitelist.Record(table, row, l.now())
	if err != nil {
		return "", apperrors.InvalidInput(err.Error())
	}

	path := filepath.Join(l.config.DataDir, table+tables.FileExt)

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(l.config.DataDir, 0o755); err != nil {
		return "", apperrors.Wrap(err, "failed to create data directory")
	}

	_, statErr := os.Stat(path)
	newFile := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return "", apperrors.Wrapf(err, "failed to open %s", path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if newFile {
		if err := w.Write(header); err != nil {
			return "", apperrors.Wrap(err, "failed to write header")
		}
	}
	if err := w.Write(record); err != nil {
		return "", apperrors.Wrap(err, "failed to write row")
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", apperrors.Wrap(err, "failed to flush row")
	}

	l.logger.Info("[csvlog] row appended", zap.String("table", table), zap.Bool("new_file", newFile))
	return l.relative(path), nil
}

// List counts the data rows of every .csv file in the data directory
func (l *FileLog) List(ctx context.Context) ([]ports.TableInfo, error) {
	paths, err := filepath.Glob(filepath.Join(l.config.DataDir, "*"+tables.FileExt))
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list data directory")
	}
	sort.Strings(paths)

	items := make([]ports.TableInfo, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(listConcurrency)
	for i, p := range paths {
		i, p := i, p
		items[i].Name = filepath.Base(p)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			n, err := countRows(p)
			if err != nil {
				l.logger.Warn("[csvlog] unreadable table", zap.String("path", p), zap.Error(err))
				return nil
			}
			items[i].Rows = &n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return items, nil
}

// Open returns the raw file for a stored table
func (l *FileLog) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name != filepath.Base(name) || !strings.HasSuffix(name, tables.FileExt) {
		return nil, apperrors.InvalidInput("Specify ?name=<file>.csv")
	}
	f, err := os.Open(filepath.Join(l.config.DataDir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.New(apperrors.KindNotFound, "File not found")
		}
		return nil, apperrors.Wrapf(err, "failed to open %s", name)
	}
	if info, err := f.Stat(); err == nil && info.IsDir() {
		f.Close()
		return nil, apperrors.New(apperrors.KindNotFound, "File not found")
	}
	return f, nil
}

func (l *FileLog) relative(path string) string {
	if l.config.RootDir == "" {
		return path
	}
	rel, err := filepath.Rel(l.config.RootDir, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

// countRows returns the number of CSV records after the header
func countRows(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	r := csv.NewReader(bufio.NewReader(f))
	r.FieldsPerRecord = -1
	n := 0
	for {
		_, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, err
		}
		n++
	}
	if n > 0 {
		n-- // header
	}
	return n, nil
}
