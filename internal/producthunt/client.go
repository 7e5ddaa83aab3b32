package producthunt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"ph-top5-bot/internal/model"

	"github.com/cenkalti/backoff/v4"
)

// Client is a minimal Product Hunt GraphQL API client.
// Docs: https://api.producthunt.com/v2/docs
type Client struct {
	apiURL string
	token  string
	client *http.Client

	maxRetries uint64
}

// NewClient creates a new Product Hunt client. apiURL should be the GraphQL
// endpoint; if empty, it defaults to the public v2 endpoint.
func NewClient(apiURL, token string) *Client {
	if strings.TrimSpace(apiURL) == "" {
		apiURL = "https://api.producthunt.com/v2/api/graphql"
	}
	return &Client{
		apiURL:     strings.TrimRight(apiURL, "/"),
		token:      token,
		client:     &http.Client{Timeout: 10 * time.Second},
		maxRetries: 3,
	}
}

const topPostsQuery = `
query TopToday($first: Int!) {
  posts(order: RANKING, first: $first) {
    edges {
      node {
        id
        name
        tagline
        slug
        votesCount
        url
        thumbnail {
          url
        }
      }
    }
  }
}`

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlError struct {
	Message string `json:"message"`
}

type postNode struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Tagline    string `json:"tagline"`
	Slug       string `json:"slug"`
	VotesCount int    `json:"votesCount"`
	URL        string `json:"url"`
	Thumbnail  *struct {
		URL string `json:"url"`
	} `json:"thumbnail"`
}

type topPostsResponse struct {
	Data *struct {
		Posts struct {
			Edges []struct {
				Node postNode `json:"node"`
			} `json:"edges"`
		} `json:"posts"`
	} `json:"data"`
	Errors []graphqlError `json:"errors"`
}

// FetchTopPosts returns today's top posts ordered by ranking, with Rank set
// from the 1-based edge position. Transient failures are retried internally
// with capped exponential backoff before an error is surfaced.
func (c *Client) FetchTopPosts(ctx context.Context, limit int) (*model.TopPostsResult, error) {
	if limit <= 0 {
		limit = 5
	}

	var resp topPostsResponse
	op := func() error {
		return c.query(ctx, topPostsQuery, map[string]any{"first": limit}, &resp)
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = 5 * time.Second
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, c.maxRetries), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, fmt.Errorf("producthunt: fetch top posts: %w", err)
	}

	if resp.Data == nil {
		return nil, fmt.Errorf("producthunt: response missing data")
	}
	posts := make([]model.Post, 0, len(resp.Data.Posts.Edges))
	for i, e := range resp.Data.Posts.Edges {
		p := model.Post{
			ID:      e.Node.ID,
			Name:    e.Node.Name,
			Tagline: e.Node.Tagline,
			Slug:    e.Node.Slug,
			Votes:   e.Node.VotesCount,
			URL:     e.Node.URL,
			Rank:    i + 1,
		}
		if e.Node.Thumbnail != nil {
			p.Thumbnail = e.Node.Thumbnail.URL
		}
		posts = append(posts, p)
	}
	slog.Debug("producthunt: fetched top posts", "count", len(posts))
	return &model.TopPostsResult{
		Posts:      posts,
		TotalCount: len(posts),
		HasMore:    len(posts) == limit,
	}, nil
}

// TestConnection performs a single-post fetch to verify the token and endpoint.
func (c *Client) TestConnection(ctx context.Context) error {
	res, err := c.FetchTopPosts(ctx, 1)
	if err != nil {
		return err
	}
	if len(res.Posts) == 0 {
		return fmt.Errorf("producthunt: connection ok but no posts returned")
	}
	return nil
}

func (c *Client) query(ctx context.Context, query string, variables map[string]any, out *topPostsResponse) error {
	body, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return backoff.Permanent(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		b, _ := io.ReadAll(resp.Body)
		return backoff.Permanent(fmt.Errorf("producthunt: status %d body=%s", resp.StatusCode, string(b)))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("producthunt: status %d body=%s", resp.StatusCode, string(b))
	}
	*out = topPostsResponse{}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return err
	}
	if len(out.Errors) > 0 {
		msgs := make([]string, 0, len(out.Errors))
		for _, e := range out.Errors {
			msgs = append(msgs, e.Message)
		}
		return fmt.Errorf("producthunt: graphql errors: %s", strings.Join(msgs, ", "))
	}
	return nil
}
