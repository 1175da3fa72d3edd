package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"

	"github.com/soundcheck-live/soundcheck/catalog"
	"github.com/soundcheck-live/soundcheck/config"
	"github.com/soundcheck-live/soundcheck/db"
	"github.com/soundcheck-live/soundcheck/logging"
	"github.com/soundcheck-live/soundcheck/setflag"
	"github.com/soundcheck-live/soundcheck/subcmd"
	"github.com/soundcheck-live/soundcheck/syncer"
	"github.com/soundcheck-live/soundcheck/tasks"
	"github.com/soundcheck-live/soundcheck/ticketing"
)

var syncKinds = []string{"artists", "shows", "tracks"}

func sync(ctx context.Context, cfg *config.Config, db *db.DB, args []string) error {
	subcmd := subcmd.New("sync", "refresh stale stored records from the external services\nrequires ticketing credentials; the tracks kind also needs catalog credentials")
	kinds := setflag.New(syncKinds...)
	var (
		limit = subcmd.Int("limit", 0, "max records per kind, 0 for all")
	)
	subcmd.Var(kinds, "kinds", "record kinds to sync: artists, shows, tracks (default all)")
	if err := subcmd.Parse(args); err != nil {
		return fmt.Errorf("flag parsing err: %w", err)
	}

	want := map[string]bool{}
	for _, kind := range kinds.List() {
		want[kind] = true
	}
	if len(want) == 0 {
		for _, kind := range syncKinds {
			want[kind] = true
		}
	}

	tick := ticketing.New(cfg.Ticketing.APIKey)
	cat := catalog.New(cfg.Catalog.ClientID, cfg.Catalog.ClientSecret)
	runner := tasks.NewRunner(cfg.Sync.TaskBuffer, cfg.Sync.TaskTimeout)
	sync := syncer.New(db, tick, cat, runner, syncer.Options{
		ArtistTTL: cfg.Sync.ArtistTTL,
		ShowTTL:   cfg.Sync.ShowTTL,
	})

	// Artist refreshes spawn track population as a side effect; the runner
	// works those off while the backfill runs and stops when it is done.
	g, gctx := errgroup.WithContext(ctx)
	runnerCtx, stopRunner := context.WithCancel(gctx)
	g.Go(func() error {
		if err := runner.Serve(runnerCtx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		defer stopRunner()
		for _, kind := range syncKinds {
			if !want[kind] {
				continue
			}
			var err error
			switch kind {
			case "artists":
				err = syncArtists(gctx, cfg, db, sync, *limit)
			case "shows":
				err = syncShows(gctx, cfg, db, sync, *limit)
			case "tracks":
				err = syncTracks(gctx, db, sync, *limit)
			}
			if err != nil {
				return fmt.Errorf("error syncing %s: %w", kind, err)
			}
		}
		return nil
	})
	return g.Wait()
}

func syncArtists(ctx context.Context, cfg *config.Config, db *db.DB, sync *syncer.Syncer, limit int) error {
	cutoff := time.Now().Add(-cfg.Sync.ArtistTTL)
	ids, err := db.GetArtistsToSync(cutoff, limit)
	if err != nil {
		return err
	}

	bar := newBar(len(ids), "artists")
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("canceled: %w", err)
		}
		if _, err := sync.ArtistIfStale(ctx, id); err != nil {
			logging.Warn().Err(err).Str("artist", id).Msg("artist refresh failed")
		}
		bar.Add(1)
	}
	return nil
}

func syncShows(ctx context.Context, cfg *config.Config, db *db.DB, sync *syncer.Syncer, limit int) error {
	cutoff := time.Now().Add(-cfg.Sync.ShowTTL)
	ids, err := db.GetShowsToSync(cutoff, limit)
	if err != nil {
		return err
	}

	bar := newBar(len(ids), "shows")
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("canceled: %w", err)
		}
		if _, err := sync.ShowIfStale(ctx, id); err != nil {
			logging.Warn().Err(err).Str("show", id).Msg("show refresh failed")
		}
		bar.Add(1)
	}
	return nil
}

func syncTracks(ctx context.Context, db *db.DB, sync *syncer.Syncer, limit int) error {
	ids, err := db.GetArtistsToFetchTracks(limit)
	if err != nil {
		return err
	}

	bar := newBar(len(ids), "tracks")
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("canceled: %w", err)
		}
		artist, err := db.GetArtist(ctx, id)
		if err != nil {
			return err
		}
		if _, err := sync.PopulateTracks(ctx, artist.ID, artist.CatalogID); err != nil {
			logging.Warn().Err(err).Str("artist", id).Msg("track population failed")
		}
		bar.Add(1)
	}
	return nil
}

func newBar(n int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(n,
		progressbar.OptionFullWidth(),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetTheme(progressbar.ThemeASCII),
	)
}
