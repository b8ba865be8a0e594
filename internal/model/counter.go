package model

// LikeState is the like count for a post plus whether the caller has liked it.
// The JSON shape is the response body of GET/POST /api/likes/{slug}.
type LikeState struct {
	Count    int64 `json:"likes"`
	HasLiked bool  `json:"hasLiked"`
}

// ViewCount is the response body of GET/POST /api/visits/{slug}.
type ViewCount struct {
	Views int64 `json:"views"`
}

// SlugDrift describes one slug whose stored like counter disagreed with its
// membership keys during a recount.
type SlugDrift struct {
	Slug    string `json:"slug"`
	Stored  int64  `json:"stored"`
	Members int64  `json:"members"`
}
