package model

import "time"

// Post represents a single ranked Product Hunt post from one fetch.
type Post struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Tagline   string `json:"tagline"`
	Slug      string `json:"slug"`
	Votes     int    `json:"votes"`
	URL       string `json:"url"`
	Thumbnail string `json:"thumbnail,omitempty"`
	Rank      int    `json:"rank"` // 1-based position within the fetch
}

// TopPostsResult is the outcome of one ranking fetch.
type TopPostsResult struct {
	Posts      []Post
	TotalCount int
	HasMore    bool
}

// ChangeType classifies a single per-post difference between two fetches.
type ChangeType string

const (
	ChangeNew     ChangeType = "new_post"
	ChangeVotes   ChangeType = "vote_change"
	ChangeRank    ChangeType = "rank_change"
	ChangeRemoved ChangeType = "removed_post"
	ChangeNone    ChangeType = "no_change"
)

// PostChange records how one post differs from its cached counterpart.
// Old* fields are zero for new posts; New* fields are zero for removed ones.
type PostChange struct {
	PostID   string
	PostName string
	OldRank  int
	NewRank  int
	OldVotes int
	NewVotes int
	Type     ChangeType
}

// StateChange aggregates the per-post changes of one diff.
// Type is rank_change when any record is a rank change, else vote_change when
// any record is a vote change, else whichever other type is present.
type StateChange struct {
	Type    ChangeType
	Changes []PostChange
	Summary string
}

// PollResult is the outcome of a single scheduler poll.
type PollResult struct {
	Success         bool
	PostsFetched    int
	ChangesDetected bool
	MessageUpdated  bool
	Err             string
	NextPollDelay   time.Duration
}
