package data

import (
	"fmt"

	"github.com/goccy/go-json"
)

// Tracks are fetched from the music-catalog service as part of an artist's
// catalog snapshot. They are stored denormalized on the artist row rather
// than as their own table, because the snapshot is read and written as one
// unit.
type Track struct {
	// like "7ouMYWpwJ422jRcDASZB7P"
	ID string `json:"id"`

	Name       string `json:"name"`
	AlbumName  string `json:"albumName,omitempty"`
	DurationMS int64  `json:"durationMs"`
	PreviewURL string `json:"previewUrl,omitempty"`
	Popularity int64  `json:"popularity"`
}

// EncodeTracks serializes a catalog snapshot for storage.
func EncodeTracks(tracks []Track) ([]byte, error) {
	bs, err := json.Marshal(tracks)
	if err != nil {
		return nil, fmt.Errorf("error encoding %d tracks: %w", len(tracks), err)
	}
	return bs, nil
}

// DecodeTracks deserializes a stored catalog snapshot.
func DecodeTracks(bs []byte) ([]Track, error) {
	var tracks []Track
	if err := json.Unmarshal(bs, &tracks); err != nil {
		return nil, fmt.Errorf("error decoding tracks snapshot: %w", err)
	}
	return tracks, nil
}
