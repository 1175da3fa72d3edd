package main

import (
	"context"
	"fmt"

	"github.com/soundcheck-live/soundcheck/config"
	"github.com/soundcheck-live/soundcheck/db"
	"github.com/soundcheck-live/soundcheck/genrechart"
	"github.com/soundcheck-live/soundcheck/readthrough"
	"github.com/soundcheck-live/soundcheck/subcmd"
)

func taxonomy(ctx context.Context, cfg *config.Config, db *db.DB, args []string) error {
	subcmd := subcmd.New("taxonomy", "import genre popularity ranks from the public genre chart")
	if err := subcmd.Parse(args); err != nil {
		return fmt.Errorf("flag parsing err: %w", err)
	}

	cache := readthrough.New(cfg.Cache.Dir, "genrechart")
	chart, err := genrechart.Fetch(ctx, cache)
	if err != nil {
		return err
	}

	bar := newBar(len(chart.Entries), "genres")
	for _, entry := range chart.Entries {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("canceled: %w", err)
		}
		if err := db.SetGenreRank(ctx, entry.Name, entry.Rank); err != nil {
			return err
		}
		bar.Add(1)
	}
	return nil
}
