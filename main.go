// this program seeds a soundcheck database with upcoming shows discovered
// from the ticketing service, so a fresh deployment has pages to serve
// before organic traffic fills the store in.
//
// see db/schema.sql for info about the resulting database.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"

	"github.com/soundcheck-live/soundcheck/config"
	"github.com/soundcheck-live/soundcheck/db"
	"github.com/soundcheck-live/soundcheck/genrechart"
	"github.com/soundcheck-live/soundcheck/logging"
	"github.com/soundcheck-live/soundcheck/readthrough"
	"github.com/soundcheck-live/soundcheck/sigctx"
	"github.com/soundcheck-live/soundcheck/ticketing"
)

var (
	keyword = flag.String("keyword", "", "limit discovery to a search term, like 'khruangbin'")
	city    = flag.String("city", "", "limit discovery to a city, like 'Oakland'")
	state   = flag.String("state", "", "limit discovery to a state code, like 'CA'")
	pages   = flag.Int("pages", 5, "how many result pages to walk")
)

func main() {
	if err := run(); err != nil && !errors.Is(err, context.Canceled) {
		panic(err)
	} else if err != nil {
		fmt.Println("canceled")
	} else {
		fmt.Println("done")
	}
}

func run() error {
	flag.Parse()
	ctx := sigctx.New()

	cfg, err := config.Load(os.Getenv("SOUNDCHECK_CONFIG"))
	if err != nil {
		return err
	}
	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	db, err := db.Open(cfg.DB.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := seedTaxonomy(ctx, cfg, db); err != nil {
		return err
	}
	if err := discoverShows(ctx, cfg, db); err != nil {
		return err
	}

	return nil
}

func seedTaxonomy(ctx context.Context, cfg *config.Config, db *db.DB) error {
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

func discoverShows(ctx context.Context, cfg *config.Config, db *db.DB) error {
	tick := ticketing.New(cfg.Ticketing.APIKey)

	events, err := tick.SearchEvents(ctx, ticketing.SearchOptions{
		Keyword:   *keyword,
		City:      *city,
		StateCode: *state,
		Pages:     *pages,
	})
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return fmt.Errorf("no events found; try widening the search")
	}

	artists := map[string]struct{}{}
	bar := newBar(len(events), "shows")
	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("canceled: %w", err)
		}

		for _, genre := range ev.Genres {
			if err := db.UpsertGenre(ctx, &genre); err != nil {
				return err
			}
		}
		if ev.Venue != nil {
			if _, err := db.UpsertVenue(ctx, ev.Venue); err != nil {
				return err
			}
		}
		if ev.Artist != nil {
			artists[ev.Artist.ID] = struct{}{}
			if _, err := db.UpsertArtist(ctx, ev.Artist); err != nil {
				return err
			}
		}
		if _, err := db.UpsertShow(ctx, &ev.Show); err != nil {
			return err
		}
		bar.Add(1)
	}

	logging.Info().
		Int("shows", len(events)).
		Int("artists", len(artists)).
		Msg("discovery complete")

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
