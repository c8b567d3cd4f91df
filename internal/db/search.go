package db

// SearchRequest is the input of a search. Query is a query string and Body
// a structured query; callers set at most one. Neither means match all.
type SearchRequest struct {
	Index  string
	Query  string
	Body   map[string]any
	From   int
	Size   int
	Source []string // restrict returned source fields
}

// SearchResult is the raw output of a search.
type SearchResult struct {
	Total int
	Hits  []Hit
}

// Hit is a single matching document.
type Hit struct {
	ID     string
	Score  float64
	Source map[string]any
}
