package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/mmcdole/gofeed"

	"finpod/internal/config"
	"finpod/internal/fileutil"
	"finpod/internal/logging"
	"finpod/internal/services"
	"finpod/internal/textutil"
)

const (
	serviceName      = "publish"
	lockRetryDelay   = 100 * time.Millisecond
	maxFeedDescRunes = 4000
)

// FeedConfig describes the feed channel and where it lives.
type FeedConfig struct {
	Dir          string
	Title        string
	Link         string
	Description  string
	Author       string
	MediaBaseURL string
	CheckLive    bool
}

// FeedPublisher writes episodes into an RSS feed on disk.
type FeedPublisher struct {
	cfg        FeedConfig
	parser     *gofeed.Parser
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time
}

// Option customizes the publisher.
type Option func(*FeedPublisher)

// WithHTTPClient overrides the client used to read the live feed.
func WithHTTPClient(client *http.Client) Option {
	return func(p *FeedPublisher) {
		if client != nil {
			p.httpClient = client
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *FeedPublisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithClock overrides the publication timestamp source.
func WithClock(now func() time.Time) Option {
	return func(p *FeedPublisher) {
		if now != nil {
			p.now = now
		}
	}
}

// NewFeedPublisher constructs a publisher from explicit settings.
func NewFeedPublisher(cfg FeedConfig, opts ...Option) *FeedPublisher {
	cfg.MediaBaseURL = strings.TrimRight(strings.TrimSpace(cfg.MediaBaseURL), "/")
	p := &FeedPublisher{
		cfg:        cfg,
		parser:     gofeed.NewParser(),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logging.NewNop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.parser.Client = p.httpClient
	p.parser.UserAgent = "finpod"
	return p
}

// New builds a publisher from configuration.
func New(cfg *config.Config, logger *slog.Logger) *FeedPublisher {
	return NewFeedPublisher(FeedConfig{
		Dir:          cfg.Paths.FeedDir,
		Title:        cfg.Publish.FeedTitle,
		Link:         cfg.Publish.FeedLink,
		Description:  cfg.Publish.FeedDescription,
		Author:       cfg.Publish.FeedAuthor,
		MediaBaseURL: cfg.Publish.MediaBaseURL,
		CheckLive:    cfg.Publish.CheckExistingFeed,
	}, WithLogger(logger))
}

// FeedPath returns the feed file location.
func (p *FeedPublisher) FeedPath() string {
	return filepath.Join(p.cfg.Dir, "feed.xml")
}

// LiveFeedURL is where the published feed is served from.
func (p *FeedPublisher) LiveFeedURL() string {
	if p.cfg.MediaBaseURL == "" {
		return ""
	}
	return p.cfg.MediaBaseURL + "/feed.xml"
}

// Publish copies the audio under media/ and adds the episode to the feed.
// It returns the episode GUID. Publishing a GUID that is already present is
// a no-op returning the same GUID.
func (p *FeedPublisher) Publish(ctx context.Context, episode Episode) (string, error) {
	if err := validateEpisode(episode); err != nil {
		return "", err
	}
	if episode.Visibility == "" {
		episode.Visibility = VisibilityPublic
	}

	if p.cfg.CheckLive && episode.Visibility != VisibilityPrivate {
		found, err := p.liveFeedHasGUID(ctx, episode.GUID)
		if err != nil {
			return "", err
		}
		if found {
			p.logger.Info("episode already in live feed",
				logging.String(logging.FieldEventType, "publish_duplicate_skipped"),
				logging.String("guid", episode.GUID),
			)
			return episode.GUID, nil
		}
	}

	lock := flock.New(p.FeedPath() + ".lock")
	if err := os.MkdirAll(p.cfg.Dir, 0o755); err != nil {
		return "", services.Wrap(services.ErrConfiguration, serviceName, "prepare", "create feed directory", err)
	}
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil || !locked {
		if err == nil {
			err = errors.New("feed lock not acquired")
		}
		return "", services.Wrap(services.ErrTransient, serviceName, "lock", p.FeedPath(), err)
	}
	defer func() { _ = lock.Unlock() }()

	mediaName := mediaFileName(episode)
	mediaPath := filepath.Join(p.cfg.Dir, "media", mediaName)
	info, err := os.Stat(mediaPath)
	if err != nil {
		if err := fileutil.CopyFileVerified(episode.AudioPath, mediaPath); err != nil {
			return "", services.Wrap(services.ErrTransient, serviceName, "copy", "stage audio", err)
		}
		if info, err = os.Stat(mediaPath); err != nil {
			return "", services.Wrap(services.ErrTransient, serviceName, "copy", "stat staged audio", err)
		}
	}
	if episode.Visibility == VisibilityPrivate {
		p.logger.Info("private episode staged",
			logging.String(logging.FieldEventType, "publish_private"),
			logging.String("guid", episode.GUID),
			logging.String("media", mediaPath),
		)
		return episode.GUID, nil
	}

	items, err := loadItems(p.parser, p.FeedPath())
	if err != nil {
		return "", services.Wrap(services.ErrPermanent, serviceName, "load", "existing feed unreadable", err)
	}
	if hasGUID(items, episode.GUID) {
		return episode.GUID, nil
	}

	published := episode.PublishedAt
	if published.IsZero() {
		published = p.now()
	}
	item := rssItem{
		Title:       episode.Title,
		Description: textutil.Excerpt(episode.Description, maxFeedDescRunes),
		GUID:        rssGUID{IsPermaLink: "false", Value: episode.GUID},
		PubDate:     formatPubDate(published),
		Enclosure: rssEnclosure{
			URL:    p.mediaURL(mediaName),
			Length: info.Size(),
			Type:   audioMIME(mediaName),
		},
	}
	if episode.Visibility == VisibilityUnlisted {
		item.Block = "Yes"
	}

	channel := rssChannel{
		Title:         p.cfg.Title,
		Link:          p.cfg.Link,
		Description:   p.cfg.Description,
		Language:      "en-us",
		Author:        p.cfg.Author,
		LastBuildDate: formatPubDate(p.now()),
		Items:         append([]rssItem{item}, items...),
	}
	err = fileutil.WriteAtomic(p.FeedPath(), 0o644, func(w io.Writer) error {
		return encodeFeed(w, channel)
	})
	if err != nil {
		return "", services.Wrap(services.ErrTransient, serviceName, "write", p.FeedPath(), err)
	}
	p.logger.Info("episode published",
		logging.String(logging.FieldEventType, "episode_published"),
		logging.String("guid", episode.GUID),
		logging.String("visibility", string(episode.Visibility)),
		logging.Int("feed_items", len(channel.Items)),
	)
	return episode.GUID, nil
}

// liveFeedHasGUID reads the served feed. A feed that does not exist yet
// counts as empty.
func (p *FeedPublisher) liveFeedHasGUID(ctx context.Context, guid string) (bool, error) {
	url := p.LiveFeedURL()
	if url == "" {
		return false, nil
	}
	feed, err := p.parser.ParseURLWithContext(url, ctx)
	if err != nil {
		var httpErr gofeed.HTTPError
		if errors.As(err, &httpErr) {
			if httpErr.StatusCode == http.StatusNotFound {
				return false, nil
			}
			return false, &services.HTTPStatusError{Service: serviceName, StatusCode: httpErr.StatusCode, Body: httpErr.Status}
		}
		if errors.Is(err, gofeed.ErrFeedTypeNotDetected) {
			return false, services.Wrap(services.ErrPermanent, serviceName, "live feed", url, err)
		}
		return false, services.TransportError(serviceName, err)
	}
	for _, item := range feed.Items {
		if item != nil && item.GUID == guid {
			return true, nil
		}
	}
	return false, nil
}

func (p *FeedPublisher) mediaURL(name string) string {
	if p.cfg.MediaBaseURL == "" {
		return "media/" + name
	}
	return p.cfg.MediaBaseURL + "/media/" + name
}

func validateEpisode(ep Episode) error {
	switch {
	case strings.TrimSpace(ep.GUID) == "":
		return services.Wrap(services.ErrValidation, serviceName, "validate", "episode guid required", nil)
	case strings.TrimSpace(ep.Title) == "":
		return services.Wrap(services.ErrValidation, serviceName, "validate", "episode title required", nil)
	case strings.TrimSpace(ep.AudioPath) == "":
		return services.Wrap(services.ErrValidation, serviceName, "validate", "audio path required", nil)
	}
	if _, err := os.Stat(ep.AudioPath); err != nil {
		return services.Wrap(services.ErrValidation, serviceName, "validate", fmt.Sprintf("audio %s", ep.AudioPath), err)
	}
	return nil
}

func mediaFileName(ep Episode) string {
	ext := strings.ToLower(filepath.Ext(ep.AudioPath))
	if ext == "" {
		ext = ".mp3"
	}
	return textutil.SanitizeToken(ep.GUID) + ext
}

func audioMIME(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".m4a", ".aac":
		return "audio/mp4"
	case ".wav":
		return "audio/wav"
	case ".opus", ".ogg":
		return "audio/ogg"
	case ".flac":
		return "audio/flac"
	default:
		return "audio/mpeg"
	}
}
