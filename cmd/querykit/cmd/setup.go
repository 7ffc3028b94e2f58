package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/solatis/querykit/internal/core/config"
	"github.com/solatis/querykit/internal/core/db"
	"github.com/solatis/querykit/internal/log"
	"github.com/solatis/querykit/internal/rules"
	"github.com/solatis/querykit/internal/types"
)

// loadConfig reads the config file, QK_ environment and changed flags, and
// builds the logger they describe.
func loadConfig(cmd *cobra.Command) (*config.Config, log.ZapLogger, error) {
	cfg, err := config.LoadConfig(configFile, cmd.Flags())
	if err != nil {
		return nil, log.ZapLogger{}, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := log.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, log.ZapLogger{}, err
	}
	return cfg, logger.With("version", Version), nil
}

func newEngine(cfg *config.Config, logger log.Logger) *rules.Engine {
	return rules.NewEngine(rules.Options{
		CaseInsensitive:       cfg.Engine.CaseInsensitive,
		SplitSearchBySpace:    cfg.Engine.SplitSearchBySpace,
		UTCDateTimes:          cfg.Engine.UTCDateTimes,
		SkipInvalidConditions: cfg.Engine.SkipInvalidConditions,
	}, logger)
}

// openStore opens the database and refuses to continue with pending
// migrations.
func openStore(ctx context.Context, cfg *config.Config) (*sqlx.DB, *db.Store, error) {
	database, err := db.Open(ctx, cfg.Store.URL)
	if err != nil {
		return nil, nil, err
	}

	statuses, err := db.MigrateStatus(ctx, database)
	if err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to check migrations: %w", err)
	}
	for _, s := range statuses {
		if !s.Applied {
			database.Close()
			return nil, nil, fmt.Errorf("migration %s not applied - run 'querykit migrate up' first", s.ID)
		}
	}

	store, err := db.NewStore(database)
	if err != nil {
		database.Close()
		return nil, nil, err
	}
	return database, store, nil
}

func readSpec(path string) (types.QuerySpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.QuerySpec{}, fmt.Errorf("failed to read spec: %w", err)
	}
	spec, err := rules.DecodeSpecYAML(data)
	if err != nil {
		return types.QuerySpec{}, fmt.Errorf("%s: %w", path, err)
	}
	return spec, nil
}
