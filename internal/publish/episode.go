package publish

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Visibility controls whether an episode is listed in the feed.
type Visibility string

const (
	VisibilityPublic   Visibility = "public"
	VisibilityUnlisted Visibility = "unlisted"
	VisibilityPrivate  Visibility = "private"
)

// ParseVisibility accepts the configured visibility string.
func ParseVisibility(value string) (Visibility, error) {
	switch v := Visibility(strings.ToLower(strings.TrimSpace(value))); v {
	case VisibilityPublic, VisibilityUnlisted, VisibilityPrivate:
		return v, nil
	case "":
		return VisibilityPublic, nil
	default:
		return "", fmt.Errorf("unknown visibility %q (want public, unlisted, or private)", value)
	}
}

// Episode is one release request.
type Episode struct {
	GUID        string
	Title       string
	Description string
	AudioPath   string
	Visibility  Visibility
	PublishedAt time.Time
}

// Publisher releases an episode and returns its published identifier.
type Publisher interface {
	Publish(ctx context.Context, episode Episode) (string, error)
}
