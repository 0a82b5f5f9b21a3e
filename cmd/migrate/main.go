package main

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"

	"labstats/adapters/postgres"
	"labstats/domain/tables"
	"labstats/internal/config"
	"labstats/internal/migration"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

// migrate creates the append_log schema and optionally imports existing
// DATA_DIR/<table>.csv files into it.
func main() {
	_ = godotenv.Load()

	databaseURL := pflag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
	importDir := pflag.String("import", "", "directory of <table>.csv files to import")
	tablesFile := pflag.String("tables", os.Getenv("TABLES_FILE"), "YAML whitelist of tables")
	pflag.Parse()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	if *databaseURL == "" {
		logger.Fatal("[migrate] database url is required (--database-url or DATABASE_URL)")
	}

	whitelist := tables.Default()
	if *tablesFile != "" {
		wl, err := config.LoadTables(*tablesFile)
		if err != nil {
			logger.Fatal("[migrate] failed to load tables file", zap.Error(err))
		}
		whitelist = wl
	}

	db, err := sqlx.Connect("postgres", *databaseURL)
	if err != nil {
		logger.Fatal("[migrate] failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	ctx := context.Background()
	if err := migration.NewRunner().Run(ctx, db); err != nil {
		logger.Fatal("[migrate] schema migration failed", zap.Error(err))
	}
	logger.Info("[migrate] schema ready")

	if *importDir == "" {
		return
	}

	repo := postgres.NewAppendLogRepository(db, whitelist, logger)
	migrated, skipped := 0, 0
	for _, table := range whitelist.Names() {
		path := filepath.Join(*importDir, table+tables.FileExt)
		rows, err := readRows(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			logger.Warn("[migrate] failed to read table", zap.String("path", path), zap.Error(err))
			skipped++
			continue
		}
		for _, row := range rows {
			if _, err := repo.Append(ctx, table, row); err != nil {
				logger.Warn("[migrate] failed to import row", zap.String("table", table), zap.Error(err))
				skipped++
				continue
			}
			migrated++
		}
	}

	logger.Info("[migrate] import complete", zap.Int("migrated", migrated), zap.Int("skipped", skipped))
}

// readRows loads a CSV file as header-keyed rows
func readRows(path string) ([]map[string]interface{}, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var rows []map[string]interface{}
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		row := make(map[string]interface{}, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = record[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
