package search

// Result is a single search hit returned to the caller.
type Result struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	BaseCharacter string `json:"baseCharacter"`
	Snippet       string `json:"snippet"`
	SeriesID      *int64 `json:"seriesId,omitempty"`
	SeriesName    string `json:"seriesName,omitempty"`
}

// Query describes a search request over public movesets.
type Query struct {
	Text     string
	SeriesID *int64
	Limit    int
	Offset   int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// MovesetRecord is the data we index for a moveset. Only movesets that are
// publicly visible (not private, current state not blocked) belong in the
// index; callers remove anything that stops qualifying.
type MovesetRecord struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	BaseCharacter string `json:"baseCharacter"`
	SeriesID      *int64 `json:"seriesId,omitempty"`
	SeriesName    string `json:"seriesName,omitempty"`
}
