// Command docqactl runs maintenance tasks against the document store.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/yungbote/docqa-backend/internal/app"
	"github.com/yungbote/docqa-backend/internal/data/db"
	"github.com/yungbote/docqa-backend/internal/platform/envutil"
	"github.com/yungbote/docqa-backend/internal/platform/logger"
)

var rootCmd = &cobra.Command{
	Use:           "docqactl",
	Short:         "Maintenance commands for the document QA backend",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// env is what most commands need: config and a migrated database, without
// the model clients the server requires.
type env struct {
	log *logger.Logger
	cfg app.Config
	db  *gorm.DB
}

func openEnv() (*env, error) {
	log, err := logger.New(envutil.String("LOG_MODE", "development"))
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	cfg, err := app.LoadConfig(log)
	if err != nil {
		log.Sync()
		return nil, err
	}
	gdb, err := db.Open(cfg.DB, log)
	if err != nil {
		log.Sync()
		return nil, err
	}
	if err := db.AutoMigrateAll(gdb); err != nil {
		_ = db.Close(gdb)
		log.Sync()
		return nil, fmt.Errorf("automigrate: %w", err)
	}
	return &env{log: log, cfg: cfg, db: gdb}, nil
}

func (e *env) Close() {
	if err := db.Close(e.db); err != nil {
		e.log.Warn("db close failed", "error", err)
	}
	e.log.Sync()
}
