// Package genrechart imports genre popularity from the chart at
// everynoise.com, where every known genre is rendered as a div and font size
// encodes popularity.
//
// The page is a couple of megabytes and changes rarely, so fetches go through
// a read-through disk cache.
package genrechart

import (
	"context"
	"fmt"
	"sort"

	"github.com/PuerkitoBio/goquery"
	"github.com/soundcheck-live/soundcheck/readthrough"
	"github.com/soundcheck-live/soundcheck/request"
)

const chartURL = "https://everynoise.com"

// A Chart is a list of genres ranked by popularity, most popular first.
type Chart struct {
	Entries []Entry
}

// An Entry is one genre's place on the chart.
type Entry struct {
	// like "pop"
	Name string

	// Rank is 1-based; rank 1 is the most popular genre.
	Rank int64

	// FontSize is the raw rendering value rank is derived from, like 150.
	FontSize int64
}

// Fetch downloads the chart page (through the cache, if given) and ranks its
// genres.
func Fetch(ctx context.Context, cache *readthrough.ReadThrough) (*Chart, error) {
	doc, err := fetchDoc(ctx, cache)
	if err != nil {
		return nil, fmt.Errorf("error fetching genre chart: %w", err)
	}
	return Parse(doc)
}

// Parse extracts and ranks the chart's genres from its parsed page.
func Parse(doc *goquery.Document) (*Chart, error) {
	var entries []Entry
	var findErr error
	doc.Find("div.canvas > div").Each(func(i int, sel *goquery.Selection) {
		if findErr != nil {
			return
		}
		el := chartElement{sel}
		fontSize, err := el.FontSize()
		if err != nil {
			findErr = err
			return
		}
		entries = append(entries, Entry{Name: el.Name(), FontSize: fontSize})
	})
	if findErr != nil {
		return nil, findErr
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("no genres found on chart page")
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].FontSize != entries[j].FontSize {
			return entries[i].FontSize > entries[j].FontSize
		}
		return entries[i].Name < entries[j].Name
	})
	for i := range entries {
		entries[i].Rank = int64(i + 1)
	}

	return &Chart{Entries: entries}, nil
}

func fetchDoc(ctx context.Context, cache *readthrough.ReadThrough) (*goquery.Document, error) {
	if cache != nil {
		if cached, _, err := cache.Get(chartURL); err == nil {
			defer cached.Close()
			return goquery.NewDocumentFromReader(cached)
		}
	}

	body, err := request.Get(ctx, chartURL)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	if cache == nil {
		return goquery.NewDocumentFromReader(body)
	}

	cached, _, err := cache.Set(chartURL, body)
	if err != nil {
		return nil, fmt.Errorf("error caching chart page: %w", err)
	}
	defer cached.Close()
	return goquery.NewDocumentFromReader(cached)
}
