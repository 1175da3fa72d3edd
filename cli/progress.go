package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/soundcheck-live/soundcheck/config"
	"github.com/soundcheck-live/soundcheck/db"
	"github.com/soundcheck-live/soundcheck/subcmd"
)

func progress(ctx context.Context, cfg *config.Config, db *db.DB, args []string) error {
	subcmd := subcmd.New("progress", "report sync coverage for the stored records")
	if err := subcmd.Parse(args); err != nil {
		return fmt.Errorf("flag parsing err: %w", err)
	}

	artistsKnown, err := db.CountArtistsKnown()
	if err != nil {
		return err
	}
	artistsResolved, err := db.CountArtistsWithCatalogID()
	if err != nil {
		return err
	}
	artistsWithTracks, err := db.CountArtistsWithTracks()
	if err != nil {
		return err
	}
	artistsFresh, err := db.CountArtistsFreshSince(time.Now().Add(-cfg.Sync.ArtistTTL))
	if err != nil {
		return err
	}

	showsKnown, err := db.CountShowsKnown()
	if err != nil {
		return err
	}
	showsDated, err := db.CountShowsDated()
	if err != nil {
		return err
	}
	showsFresh, err := db.CountShowsFreshSince(time.Now().Add(-cfg.Sync.ShowTTL))
	if err != nil {
		return err
	}

	venuesKnown, err := db.CountVenuesKnown()
	if err != nil {
		return err
	}

	genresKnown, err := db.CountGenresKnown()
	if err != nil {
		return err
	}
	genresRanked, err := db.CountGenresRanked()
	if err != nil {
		return err
	}

	printSection("artists", artistsKnown, map[string]int{
		"resolved against the catalog": artistsResolved,
		"with a track snapshot":        artistsWithTracks,
		"fresh":                        artistsFresh,
	})
	printSection("shows", showsKnown, map[string]int{
		"scheduled": showsDated,
		"fresh":     showsFresh,
	})
	printSection("venues", venuesKnown, nil)
	printSection("genres", genresKnown, map[string]int{
		"ranked by the chart": genresRanked,
	})

	return nil
}

var humanPrinter = message.NewPrinter(language.English)

func printSection(name string, known int, done map[string]int) {
	humanPrinter.Printf("%s\n", strings.ToUpper(name))
	humanPrinter.Printf("  %d\tknown\n", known)
	for k, v := range done {
		if known == 0 {
			humanPrinter.Printf("  %d\t%s\n", v, k)
			continue
		}
		humanPrinter.Printf("  %d\t%s (%.2f%%)\n", v, k, 100.0*float64(v)/float64(known))
	}
	humanPrinter.Printf("\n")
}
