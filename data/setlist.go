package data

// A SetlistEntry is a proposed song plus its accumulated votes within one
// show's session. Entries are kept in insertion order; votes change ranking
// data, never storage order.
type SetlistEntry struct {
	Song     Track `json:"song"`
	Votes    int64 `json:"votes"`
	Position int   `json:"position"`
}
