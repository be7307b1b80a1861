package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nerrad567/gray-logic-facade/internal/history"
	"github.com/nerrad567/gray-logic-facade/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-facade/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-facade/migrations"
)

func newHistoryCmd(v *viper.Viper) *cobra.Command {
	var (
		q     history.Query
		since time.Duration
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded attribute changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			if since > 0 {
				q.Since = time.Now().Add(-since)
			}
			db, err := openHistory(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			entries, err := history.NewSQLiteRepository(db.DB).Query(cmd.Context(), q)
			if err != nil {
				return err
			}
			return writeHistory(cmd.OutOrStdout(), entries)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&q.Device, "device", "", "filter by device")
	flags.StringVar(&q.Attribute, "attribute", "", "filter by attribute")
	flags.DurationVar(&since, "since", 0, "only changes newer than this (e.g. 1h)")
	flags.IntVar(&q.Limit, "limit", history.DefaultLimit, "maximum number of changes")
	return cmd
}

// openHistory opens the history database and brings its schema up to date.
func openHistory(ctx context.Context, cfg *config.Config) (*database.DB, error) {
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx, migrations.All()); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}

func writeHistory(w io.Writer, entries []history.Entry) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tDEVICE\tATTRIBUTE\tQUALITY\tVALUE")
	for _, e := range entries {
		value := fmt.Sprint(e.Value)
		if e.Error != "" {
			value = "error: " + e.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			e.Time.Format(time.RFC3339Nano), e.Device, e.Attribute, e.Quality, value)
	}
	return tw.Flush()
}
