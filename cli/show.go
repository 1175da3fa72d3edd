package main

import (
	"context"
	"fmt"
	"os"

	json "github.com/goccy/go-json"

	"github.com/soundcheck-live/soundcheck/catalog"
	"github.com/soundcheck-live/soundcheck/config"
	"github.com/soundcheck-live/soundcheck/db"
	"github.com/soundcheck-live/soundcheck/realtime"
	"github.com/soundcheck-live/soundcheck/setlist"
	"github.com/soundcheck-live/soundcheck/showdetail"
	"github.com/soundcheck-live/soundcheck/subcmd"
	"github.com/soundcheck-live/soundcheck/syncer"
	"github.com/soundcheck-live/soundcheck/tasks"
	"github.com/soundcheck-live/soundcheck/ticketing"
	"github.com/soundcheck-live/soundcheck/trackcache"
)

// show prints the aggregate view the api would serve for one show. Setlist
// state is per-process, so the setlist is always empty here; the point is
// checking what the store and the external services have for the show.
func show(ctx context.Context, cfg *config.Config, db *db.DB, args []string) error {
	subcmd := subcmd.New("show", "print the aggregate view for one show")
	subcmd.SetArg("showID", "string", "ticketing id of the show, like 'vvG1HZ9plrV8GK'")
	if err := subcmd.Parse(args); err != nil {
		return fmt.Errorf("flag parsing err: %w", err)
	}
	if subcmd.NArg() != 1 {
		subcmd.Usage()
		return fmt.Errorf("show takes exactly one show id")
	}

	tick := ticketing.New(cfg.Ticketing.APIKey)
	cat := catalog.New(cfg.Catalog.ClientID, cfg.Catalog.ClientSecret)
	runner := tasks.NewRunner(cfg.Sync.TaskBuffer, cfg.Sync.TaskTimeout)
	sync := syncer.New(db, tick, cat, runner, syncer.Options{
		ArtistTTL: cfg.Sync.ArtistTTL,
		ShowTTL:   cfg.Sync.ShowTTL,
	})
	cache := trackcache.New(db, sync, runner)
	engine := setlist.New(nil, nil, nil, cfg.Auth.LoginURL)
	agg := showdetail.New(sync, cache, engine, realtime.NewHub(), db)

	view, err := agg.View(ctx, subcmd.Arg(0))
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(view)
}
