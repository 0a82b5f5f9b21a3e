package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"labstats/adapters/csvlog"
	"labstats/adapters/datareadiness/coercer"
	"labstats/adapters/excel"
	"labstats/adapters/postgres"
	domainstats "labstats/domain/stats"
	"labstats/internal"
	"labstats/internal/analysis"
	"labstats/internal/config"
	"labstats/internal/errors"
	"labstats/internal/migration"
	"labstats/ports"
	"labstats/ui"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// initDatabase connects to PostgreSQL and brings the append_log schema up to date
func initDatabase(ctx context.Context, appConfig *config.Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", appConfig.Database.URL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}

	migrator := migration.NewRunner()
	if err := migrator.Run(ctx, db); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "database migration failed")
	}
	return db, nil
}

// newAppendLog builds the configured storage backend; the returned closer releases it
func newAppendLog(ctx context.Context, appConfig *config.Config, logger *zap.Logger) (ports.AppendLog, func(), error) {
	switch appConfig.Storage.Backend {
	case config.BackendPostgres:
		db, err := initDatabase(ctx, appConfig)
		if err != nil {
			return nil, nil, err
		}
		repo := postgres.NewAppendLogRepository(db, appConfig.Tables, logger)
		return repo, func() { db.Close() }, nil
	default:
		fileLog := csvlog.NewFileLog(csvlog.Config{
			DataDir: appConfig.Paths.DataDir,
			RootDir: appConfig.Paths.RootDir,
		}, appConfig.Tables, &sync.Mutex{}, logger)
		return fileLog, func() {}, nil
	}
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	appConfig, err := config.LoadWithFlags(os.Args[1:])
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := internal.NewLogger(appConfig.Logging.Level, appConfig.Logging.Format)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appendLog, closeLog, err := newAppendLog(ctx, appConfig, logger)
	if err != nil {
		logger.Fatal("Failed to initialize storage", zap.Error(err))
	}
	defer closeLog()

	reader := excel.NewDataReader(excel.DefaultReaderConfig())
	loader := analysis.NewLoader(reader, coercer.NewTypeCoercer(coercer.DefaultCoercionConfig()))
	pipeline := analysis.NewPipeline(loader, analysis.NewDispatcher(analysis.NewPostHoc(domainstats.FWER)), logger)

	server := ui.NewServer(pipeline, appendLog, ui.Options{
		RootDir:        appConfig.Paths.RootDir,
		ToolsDir:       appConfig.Paths.ToolsDir,
		MaxUploadBytes: appConfig.MaxUploadBytes(),
		MaxConcurrent:  appConfig.Analysis.MaxConcurrent,
		CORSOrigins:    appConfig.Server.CORSOrigins,
		GinMode:        appConfig.Server.GinMode,
	}, logger)

	logger.Info("Starting lab stats server",
		zap.String("addr", appConfig.Addr()),
		zap.String("storage", appConfig.Storage.Backend),
		zap.String("tools_dir", appConfig.Paths.ToolsDir))
	if err := server.Run(ctx, appConfig.Addr()); err != nil {
		logger.Fatal("Server stopped", zap.Error(err))
	}
}
