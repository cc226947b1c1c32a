package sources

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"finpod/internal/config"
	"finpod/internal/logging"
	"finpod/internal/roster"
	"finpod/internal/services"
)

// RawTranscript is unprocessed text as retrieved from a source.
type RawTranscript struct {
	Text        string
	Source      string
	URL         string
	RetrievedAt time.Time
}

// Source fetches raw text for one company and period.
type Source interface {
	Name() string
	Fetch(ctx context.Context, company roster.Company, period roster.Period) (RawTranscript, error)
}

// Chain tries each source in order, moving on only when a source reports
// the period unavailable.
type Chain struct {
	sources []Source
	logger  *slog.Logger
}

// NewChain builds a chain over sources.
func NewChain(logger *slog.Logger, sources ...Source) *Chain {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Chain{sources: sources, logger: logger}
}

// Name lists the chained source names.
func (c *Chain) Name() string {
	names := make([]string, 0, len(c.sources))
	for _, s := range c.sources {
		names = append(names, s.Name())
	}
	return strings.Join(names, "+")
}

// Fetch returns the first available transcript.
func (c *Chain) Fetch(ctx context.Context, company roster.Company, period roster.Period) (RawTranscript, error) {
	if len(c.sources) == 0 {
		return RawTranscript{}, services.Wrap(services.ErrConfiguration, "fetch", "sources", "no sources configured", nil)
	}
	var unavailable []error
	for _, source := range c.sources {
		raw, err := source.Fetch(ctx, company, period)
		if err == nil {
			return raw, nil
		}
		if !errors.Is(err, services.ErrInputUnavailable) {
			return RawTranscript{}, err
		}
		c.logger.Debug("source has nothing for period",
			logging.String("source", source.Name()),
			logging.String("reason", err.Error()),
		)
		unavailable = append(unavailable, err)
	}
	return RawTranscript{}, errors.Join(unavailable...)
}

// New builds the chain named by cfg.Pipeline.SourceOrder.
func New(cfg *config.Config, logger *slog.Logger) (*Chain, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	timeout := time.Duration(cfg.Sources.TimeoutSeconds) * time.Second
	client := &http.Client{Timeout: timeout}

	var list []Source
	for _, name := range cfg.Pipeline.SourceOrder {
		switch name {
		case EarningsCallName:
			list = append(list, NewEarningsCall(cfg.Sources.EarningsCallBaseURL, WithHTTPClient(client), WithLogger(logger)))
		case SECName:
			list = append(list, NewSEC(SECConfig{
				DataURL:     cfg.Sources.SECDataURL,
				ArchivesURL: cfg.Sources.SECArchivesURL,
				TickersURL:  cfg.Sources.SECTickersURL,
				Identity:    cfg.Sources.SECIdentity,
			}, WithHTTPClient(client), WithLogger(logger)))
		default:
			return nil, services.Wrap(services.ErrConfiguration, "fetch", "sources", fmt.Sprintf("unknown source %q", name), nil)
		}
	}
	return NewChain(logger, list...), nil
}

type options struct {
	client *http.Client
	logger *slog.Logger
}

// Option customizes a source.
type Option func(*options)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		if client != nil {
			o.client = client
		}
	}
}

// WithLogger routes source diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func applyOptions(opts []Option) options {
	o := options{client: &http.Client{Timeout: 30 * time.Second}, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
