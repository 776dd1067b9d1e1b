package fetcher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"moorelink-bot/internal/models"
)

type stubFetcher struct {
	posts []models.Post
	err   error
}

func (s stubFetcher) Fetch(context.Context, string) ([]models.Post, error) {
	return s.posts, s.err
}

func discardLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDispatcherRoutesAndCaps(t *testing.T) {
	d := NewDispatcher(2, discardLog())
	d.Register("x", stubFetcher{posts: []models.Post{{ID: "a"}, {ID: "b"}, {ID: "c"}}})

	got, err := d.Fetch(context.Background(), "x", "acct")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != "a" {
		t.Fatalf("got %d posts, want capped to 2 keeping order", len(got))
	}

	if !d.Supported("x") || d.Supported("ig") {
		t.Error("Supported misreports registrations")
	}

	_, err = d.Fetch(context.Background(), "ig", "acct")
	if !errors.Is(err, ErrUnsupportedPlatform) {
		t.Errorf("err = %v, want ErrUnsupportedPlatform", err)
	}
}

func TestExtractUserID(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"44196397", "44196397", true},
		{"https://x.com/i/user/44196397", "44196397", true},
		{"https://x.com/i/user/1234567890123456789", "1234567890123456789", true},
		{"id: 44196397", "44196397", true},
		{"elonmusk", "", false},
		{"user123", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := extractUserID(tc.in)
		if tc.ok != (err == nil) || got != tc.want {
			t.Errorf("extractUserID(%q) = %q, %v", tc.in, got, err)
		}
	}
}

func TestXFetchParsesTimeline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-rapidapi-key") != "k" {
			t.Errorf("missing api key header")
		}
		if got := r.URL.Query().Get("user_id"); got != "1234567890" {
			t.Errorf("user_id = %q", got)
		}
		io.WriteString(w, `{"data":[
            {"id_str":"111","text":"first"},
            {"id":222,"text":"numeric id"},
            {"text":"no id, dropped"}
        ]}`)
	}))
	defer srv.Close()

	f := NewX("k", "host", srv.URL)
	posts, err := f.Fetch(context.Background(), "1234567890")
	if err != nil {
		t.Fatal(err)
	}
	if len(posts) != 2 {
		t.Fatalf("got %d posts, want 2", len(posts))
	}
	if posts[0].ID != "111" || posts[0].URL != "https://fixupx.com/1234567890/status/111" {
		t.Errorf("post 0 = %+v", posts[0])
	}
	if posts[1].ID != "222" {
		t.Errorf("numeric id not handled: %+v", posts[1])
	}
}

func TestFBSinglePostShortcut(t *testing.T) {
	f := NewFB("k", "host", "http://unused", 10)

	posts, err := f.Fetch(context.Background(), "https://www.facebook.com/share/abc123/?mibextid=xyz")
	if err != nil {
		t.Fatal(err)
	}
	if len(posts) != 1 {
		t.Fatalf("got %d posts, want 1", len(posts))
	}
	if posts[0].URL != "https://www.facebook.com/share/abc123" {
		t.Errorf("url = %q, want query and trailing slash stripped", posts[0].URL)
	}
}

func TestFBFetchParsesPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("link"); got != "https://www.facebook.com/natgeo" {
			t.Errorf("link = %q", got)
		}
		io.WriteString(w, `{"data":{"posts":[
            {"details":{"post_id":"p1","text":"hello &amp; world","post_link":"https://www.facebook.com/natgeo/posts/p1"},
             "attachments":[{"__typename":"Photo","photo_image":{"uri":"https://cdn/p1.jpg"}}]},
            {"values":{"post_id":"p2","is_media":"Video"}},
            {"details":{"post_id":"p1"}}
        ],"page_info":{"end_cursor":"","has_next":false}}}`)
	}))
	defer srv.Close()

	f := NewFB("k", "host", srv.URL, 10)
	posts, err := f.Fetch(context.Background(), "@natgeo")
	if err != nil {
		t.Fatal(err)
	}
	if len(posts) != 2 {
		t.Fatalf("got %d posts, want 2 (duplicate dropped)", len(posts))
	}
	if posts[0].Caption != "hello & world" {
		t.Errorf("caption = %q, want entities unescaped", posts[0].Caption)
	}
	if posts[0].MediaURL != "https://cdn/p1.jpg" || posts[0].IsVideo {
		t.Errorf("post 0 media: %+v", posts[0])
	}
	if !posts[1].IsVideo {
		t.Errorf("post 1 should be video: %+v", posts[1])
	}
	if posts[1].URL != "https://www.facebook.com/natgeo/posts/p2" {
		t.Errorf("fallback url = %q", posts[1].URL)
	}
}

func TestIGFetchParsesFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("username_or_id_or_url"); got != "natgeo" {
			t.Errorf("username = %q", got)
		}
		io.WriteString(w, `{"data":{"items":[
            {"code":"C1","caption":{"text":"a photo"},"display_url":"https://cdn/a.jpg"},
            {"code":"C2","is_video":true,"caption":{"text":"a clip"},"display_url":"https://cdn/b.jpg","video_url":"https://cdn/b.mp4"}
        ]}}`)
	}))
	defer srv.Close()

	f := NewIG("k", "host", srv.URL)
	posts, err := f.Fetch(context.Background(), "@natgeo")
	if err != nil {
		t.Fatal(err)
	}
	if len(posts) != 2 {
		t.Fatalf("got %d posts", len(posts))
	}
	if posts[0].URL != "https://www.instagram.com/p/C1/" || posts[0].MediaURL != "https://cdn/a.jpg" {
		t.Errorf("post 0 = %+v", posts[0])
	}
	if !posts[1].IsVideo || posts[1].MediaURL != "https://cdn/b.mp4" {
		t.Errorf("video post should prefer video_url: %+v", posts[1])
	}
}

func TestBestThumb(t *testing.T) {
	thumbs := map[string]ytThumb{
		"default": {URL: "d"},
		"high":    {URL: "h"},
	}
	if got := bestThumb(thumbs); got != "h" {
		t.Errorf("bestThumb = %q, want high", got)
	}
	if got := bestThumb(nil); got != "" {
		t.Errorf("bestThumb(nil) = %q", got)
	}
}

func TestGetJSONRetriesThrottling(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		io.WriteString(w, `{"ok":true}`)
	}))
	defer srv.Close()

	var out struct {
		OK bool `json:"ok"`
	}
	err := getJSON(context.Background(), srv.Client(), srv.URL, nil, &out)
	if err != nil || !out.OK {
		t.Fatalf("getJSON = %v, out=%+v", err, out)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want retry after 429", calls)
	}
}

func TestGetJSONStopsOnClientError(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	var out struct{}
	if err := getJSON(context.Background(), srv.Client(), srv.URL, nil, &out); err == nil {
		t.Fatal("want error on 403")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want no retry on 403", calls)
	}
}
