package publish_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"

	"finpod/internal/publish"
	"finpod/internal/services"
)

func writeAudio(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	return path
}

func parseFeed(t *testing.T, path string) *gofeed.Feed {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open feed: %v", err)
	}
	defer file.Close()
	feed, err := gofeed.NewParser().Parse(file)
	if err != nil {
		t.Fatalf("parse feed: %v", err)
	}
	return feed
}

func newPublisher(t *testing.T, dir string, mutate func(*publish.FeedConfig), opts ...publish.Option) *publish.FeedPublisher {
	t.Helper()
	cfg := publish.FeedConfig{
		Dir:          filepath.Join(dir, "feed"),
		Title:        "Earnings Briefing",
		Link:         "https://example.com",
		Description:  "Quarterly results.",
		Author:       "finpod",
		MediaBaseURL: "https://cdn.example.com/podcast/",
	}
	if mutate != nil {
		mutate(&cfg)
	}
	clock := func() time.Time { return time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC) }
	return publish.NewFeedPublisher(cfg, append([]publish.Option{publish.WithClock(clock)}, opts...)...)
}

func TestPublishAddsEpisodeToFeed(t *testing.T) {
	dir := t.TempDir()
	pub := newPublisher(t, dir, nil)
	audio := writeAudio(t, dir, "episode.mp3", "ID3audio")

	id, err := pub.Publish(context.Background(), publish.Episode{
		GUID:        "finpod:acme-2024-q1",
		Title:       "ACME Corp 2024-Q1",
		Description: "Revenue grew.",
		AudioPath:   audio,
	})
	if err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if id != "finpod:acme-2024-q1" {
		t.Fatalf("unexpected id %q", id)
	}

	feed := parseFeed(t, pub.FeedPath())
	if feed.Title != "Earnings Briefing" || len(feed.Items) != 1 {
		t.Fatalf("unexpected feed %q with %d items", feed.Title, len(feed.Items))
	}
	item := feed.Items[0]
	if item.GUID != id || item.Title != "ACME Corp 2024-Q1" {
		t.Fatalf("unexpected item %+v", item)
	}
	if len(item.Enclosures) != 1 {
		t.Fatalf("expected one enclosure, got %d", len(item.Enclosures))
	}
	enc := item.Enclosures[0]
	if enc.URL != "https://cdn.example.com/podcast/media/finpod_acme-2024-q1.mp3" || enc.Length != "8" || enc.Type != "audio/mpeg" {
		t.Fatalf("unexpected enclosure %+v", enc)
	}
	staged, err := os.ReadFile(filepath.Join(dir, "feed", "media", "finpod_acme-2024-q1.mp3"))
	if err != nil || string(staged) != "ID3audio" {
		t.Fatalf("staged audio mismatch: %q %v", staged, err)
	}
}

func TestPublishIsIdempotentPerGUID(t *testing.T) {
	dir := t.TempDir()
	pub := newPublisher(t, dir, nil)
	audio := writeAudio(t, dir, "episode.mp3", "audio")
	ep := publish.Episode{GUID: "finpod:acme-2024-q1", Title: "ACME", AudioPath: audio}

	for i := 0; i < 3; i++ {
		if _, err := pub.Publish(context.Background(), ep); err != nil {
			t.Fatalf("Publish #%d returned error: %v", i+1, err)
		}
	}
	other := publish.Episode{GUID: "finpod:acme-2024-q2", Title: "ACME Q2", AudioPath: audio}
	if _, err := pub.Publish(context.Background(), other); err != nil {
		t.Fatalf("Publish other returned error: %v", err)
	}

	feed := parseFeed(t, pub.FeedPath())
	if len(feed.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(feed.Items))
	}
	if feed.Items[0].GUID != "finpod:acme-2024-q2" || feed.Items[1].GUID != "finpod:acme-2024-q1" {
		t.Fatalf("unexpected item order %q, %q", feed.Items[0].GUID, feed.Items[1].GUID)
	}
}

func TestPublishVisibility(t *testing.T) {
	dir := t.TempDir()
	pub := newPublisher(t, dir, nil)
	audio := writeAudio(t, dir, "episode.mp3", "audio")

	if _, err := pub.Publish(context.Background(), publish.Episode{GUID: "u1", Title: "Unlisted", AudioPath: audio, Visibility: publish.VisibilityUnlisted}); err != nil {
		t.Fatalf("publish unlisted: %v", err)
	}
	if _, err := pub.Publish(context.Background(), publish.Episode{GUID: "p1", Title: "Private", AudioPath: audio, Visibility: publish.VisibilityPrivate}); err != nil {
		t.Fatalf("publish private: %v", err)
	}

	feed := parseFeed(t, pub.FeedPath())
	if len(feed.Items) != 1 {
		t.Fatalf("private episode should not be listed; got %d items", len(feed.Items))
	}
	if feed.Items[0].ITunesExt == nil || !strings.EqualFold(feed.Items[0].ITunesExt.Block, "yes") {
		t.Fatalf("expected itunes:block on unlisted episode, got %+v", feed.Items[0].ITunesExt)
	}
	if _, err := os.Stat(filepath.Join(dir, "feed", "media", "p1.mp3")); err != nil {
		t.Fatalf("private audio not staged: %v", err)
	}
}

func TestPublishSkipsGUIDInLiveFeed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/feed.xml" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(`<?xml version="1.0"?><rss version="2.0"><channel><title>Live</title>` +
			`<item><title>ACME</title><guid>finpod:acme-2024-q1</guid></item></channel></rss>`))
	}))
	defer server.Close()

	dir := t.TempDir()
	pub := newPublisher(t, dir, func(cfg *publish.FeedConfig) {
		cfg.MediaBaseURL = server.URL
		cfg.CheckLive = true
	}, publish.WithHTTPClient(server.Client()))
	audio := writeAudio(t, dir, "episode.mp3", "audio")

	id, err := pub.Publish(context.Background(), publish.Episode{GUID: "finpod:acme-2024-q1", Title: "ACME", AudioPath: audio})
	if err != nil || id != "finpod:acme-2024-q1" {
		t.Fatalf("Publish = %q, %v", id, err)
	}
	if _, err := os.Stat(pub.FeedPath()); !os.IsNotExist(err) {
		t.Fatal("local feed should not be written for a GUID already live")
	}
}

func TestPublishLiveFeedMissingIsEmpty(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	dir := t.TempDir()
	pub := newPublisher(t, dir, func(cfg *publish.FeedConfig) {
		cfg.MediaBaseURL = server.URL
		cfg.CheckLive = true
	}, publish.WithHTTPClient(server.Client()))
	audio := writeAudio(t, dir, "episode.mp3", "audio")

	if _, err := pub.Publish(context.Background(), publish.Episode{GUID: "g1", Title: "First", AudioPath: audio}); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if len(parseFeed(t, pub.FeedPath()).Items) != 1 {
		t.Fatal("expected episode in local feed")
	}
}

func TestPublishLiveFeedServerErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	dir := t.TempDir()
	pub := newPublisher(t, dir, func(cfg *publish.FeedConfig) {
		cfg.MediaBaseURL = server.URL
		cfg.CheckLive = true
	}, publish.WithHTTPClient(server.Client()))
	audio := writeAudio(t, dir, "episode.mp3", "audio")

	_, err := pub.Publish(context.Background(), publish.Episode{GUID: "g1", Title: "First", AudioPath: audio})
	if !services.IsRetryable(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestPublishValidatesEpisode(t *testing.T) {
	dir := t.TempDir()
	pub := newPublisher(t, dir, nil)
	tests := []publish.Episode{
		{Title: "t", AudioPath: "x"},
		{GUID: "g", AudioPath: "x"},
		{GUID: "g", Title: "t", AudioPath: filepath.Join(dir, "missing.mp3")},
	}
	for i, ep := range tests {
		_, err := pub.Publish(context.Background(), ep)
		if !errors.Is(err, services.ErrValidation) {
			t.Fatalf("case %d: expected validation error, got %v", i, err)
		}
	}
}

func TestParseVisibility(t *testing.T) {
	for in, want := range map[string]publish.Visibility{
		"":          publish.VisibilityPublic,
		"Public":    publish.VisibilityPublic,
		" unlisted": publish.VisibilityUnlisted,
		"PRIVATE":   publish.VisibilityPrivate,
	} {
		got, err := publish.ParseVisibility(in)
		if err != nil || got != want {
			t.Fatalf("ParseVisibility(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := publish.ParseVisibility("secret"); err == nil {
		t.Fatal("expected error for unknown visibility")
	}
}
