package main

import (
	"flag"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joripage/makerbot/config"
	"github.com/joripage/makerbot/pkg/infra"
	"github.com/joripage/makerbot/pkg/logging"
	"go.uber.org/zap"
)

func main() {
	var configFile, source string
	flag.StringVar(&configFile, "config-file", "", "Specify config file path")
	flag.StringVar(&source, "source", infra.DefaultMigrationSource, "Migration source URL")
	flag.Parse()

	zap.ReplaceGlobals(logging.NewLogger(logging.INFO).Zap())

	cfg, err := config.Load(configFile, "")
	if err != nil {
		zap.S().Fatalf("load config: %v", err)
	}
	if cfg.JournalDB == nil || cfg.JournalDB.MigrationConnURL == "" {
		zap.S().Fatal("journal_db.migration_conn_url is required")
	}

	if err := infra.GetMigrateTool().Migrate(source, cfg.JournalDB.MigrationConnURL); err != nil {
		zap.S().Fatalf("migrate: %v", err)
	}
}
