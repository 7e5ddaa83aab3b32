package discord

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ph-top5-bot/internal/model"
)

var samplePosts = []model.Post{
	{ID: "1", Name: "Widget", Tagline: "A widget for widgets", Rank: 1, Votes: 250, URL: "https://www.producthunt.com/posts/widget", Thumbnail: "https://img.example/widget.png"},
	{ID: "2", Name: "Gadget", Tagline: "Do more with less", Rank: 2, Votes: 180, URL: "https://www.producthunt.com/posts/gadget"},
}

func TestBuildEmbed(t *testing.T) {
	e := buildEmbed(samplePosts, "January 15, 2025", EmbedOptions{})

	if e.Title != "Top 2 on Product Hunt — January 15, 2025" {
		t.Errorf("title = %q", e.Title)
	}
	if !strings.Contains(e.Description, "**#1 • Widget**") {
		t.Errorf("description missing first entry header: %q", e.Description)
	}
	if !strings.Contains(e.Description, "👍 180 | [View on Product Hunt](https://www.producthunt.com/posts/gadget)") {
		t.Errorf("description missing vote line: %q", e.Description)
	}
	if e.Color != 0xda552f {
		t.Errorf("color = %#x, want default", e.Color)
	}
	if e.Footer == nil || e.Footer.Text != "Auto-updating until midnight PT" {
		t.Errorf("footer = %+v", e.Footer)
	}
	if e.Thumbnail != nil {
		t.Error("thumbnail should be omitted unless requested")
	}
}

func TestBuildEmbedOptions(t *testing.T) {
	e := buildEmbed(samplePosts, "January 15, 2025", EmbedOptions{
		IncludeThumbnail: true,
		Color:            0x00ff00,
		FooterText:       "custom",
	})
	if e.Color != 0x00ff00 {
		t.Errorf("color = %#x", e.Color)
	}
	if e.Footer.Text != "custom" {
		t.Errorf("footer = %q", e.Footer.Text)
	}
	if e.Thumbnail == nil || e.Thumbnail.URL != samplePosts[0].Thumbnail {
		t.Errorf("thumbnail = %+v", e.Thumbnail)
	}
}

func TestBuildEmbedThumbnailRequiresURL(t *testing.T) {
	posts := []model.Post{{ID: "1", Name: "Bare", Rank: 1}}
	e := buildEmbed(posts, "January 15, 2025", EmbedOptions{IncludeThumbnail: true})
	if e.Thumbnail != nil {
		t.Error("no thumbnail URL on the first post, embed should omit it")
	}
}

func TestPostTopPosts(t *testing.T) {
	var gotPath, gotAuth string
	var gotPayload messagePayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.Method + " " + r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotPayload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		json.NewEncoder(w).Encode(messageResponse{ID: "111222333"})
	}))
	defer srv.Close()

	c := New(srv.URL, "tok", "chan-1")
	res := c.PostTopPosts(context.Background(), samplePosts, "January 15, 2025", EmbedOptions{})
	if !res.Success || res.MessageID != "111222333" {
		t.Fatalf("result = %+v", res)
	}
	if gotPath != "POST /channels/chan-1/messages" {
		t.Errorf("request = %q", gotPath)
	}
	if gotAuth != "Bot tok" {
		t.Errorf("authorization = %q", gotAuth)
	}
	if len(gotPayload.Embeds) != 1 || gotPayload.Embeds[0].Title == "" {
		t.Errorf("payload = %+v", gotPayload)
	}
}

func TestEditTopPosts(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.Method + " " + r.URL.Path
		json.NewEncoder(w).Encode(messageResponse{ID: "999"})
	}))
	defer srv.Close()

	c := New(srv.URL, "tok", "chan-1")
	res := c.EditTopPosts(context.Background(), "999", samplePosts, "January 15, 2025", EmbedOptions{})
	if !res.Success || res.MessageID != "999" {
		t.Fatalf("result = %+v", res)
	}
	if gotPath != "PATCH /channels/chan-1/messages/999" {
		t.Errorf("request = %q", gotPath)
	}
}

func TestEditTopPostsEmptyID(t *testing.T) {
	c := New("http://unused.invalid", "tok", "chan-1")
	res := c.EditTopPosts(context.Background(), "  ", samplePosts, "January 15, 2025", EmbedOptions{})
	if res.Success {
		t.Fatal("edit with empty message id must fail without a request")
	}
}

func TestPostTopPostsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message": "Missing Permissions", "code": 50013}`, http.StatusForbidden)
	}))
	defer srv.Close()

	c := New(srv.URL, "tok", "chan-1")
	res := c.PostTopPosts(context.Background(), samplePosts, "January 15, 2025", EmbedOptions{})
	if res.Success {
		t.Fatal("expected failure on 403")
	}
	if !strings.Contains(res.Err, "status=403") {
		t.Errorf("err = %q", res.Err)
	}
}

func TestTestConnection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/channels/chan-1" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"id": "chan-1"}`))
	}))
	defer srv.Close()

	if err := New(srv.URL, "tok", "chan-1").TestConnection(context.Background()); err != nil {
		t.Fatalf("TestConnection: %v", err)
	}
	if err := New(srv.URL, "tok", "other").TestConnection(context.Background()); err == nil {
		t.Fatal("expected error for unknown channel")
	}
}
