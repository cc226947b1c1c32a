package sources

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"finpod/internal/logging"
	"finpod/internal/roster"
	"finpod/internal/services"
)

// EarningsCallName identifies the earningscall.biz source in configuration.
const EarningsCallName = "earningscall"

const earningsCallUserAgent = "Mozilla/5.0 (X11; Linux x86_64) finpod/1.0"

// EarningsCall scrapes call transcripts from earningscall.biz.
type EarningsCall struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
	now     func() time.Time
}

// NewEarningsCall constructs the source rooted at baseURL.
func NewEarningsCall(baseURL string, opts ...Option) *EarningsCall {
	o := applyOptions(opts)
	return &EarningsCall{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		client:  o.client,
		logger:  o.logger,
		now:     time.Now,
	}
}

// Name implements Source.
func (e *EarningsCall) Name() string { return EarningsCallName }

// TranscriptURL builds the page address for one symbol spelling.
func (e *EarningsCall) TranscriptURL(exchange, symbol string, period roster.Period) string {
	return fmt.Sprintf("%s/e/%s/s/%s/y/%d/q/%s",
		e.baseURL,
		url.PathEscape(strings.ToLower(strings.TrimSpace(exchange))),
		url.PathEscape(strings.ToLower(strings.TrimSpace(symbol))),
		period.Year,
		period.QuarterLabel(),
	)
}

// Fetch tries each symbol spelling for the company until one page exists.
func (e *EarningsCall) Fetch(ctx context.Context, company roster.Company, period roster.Period) (RawTranscript, error) {
	exchange := strings.TrimSpace(company.Exchange)
	if exchange == "" {
		return RawTranscript{}, services.Wrap(services.ErrInputUnavailable, "fetch", EarningsCallName,
			fmt.Sprintf("%s has no exchange configured", company.Ticker), nil)
	}

	headers := map[string]string{"User-Agent": earningsCallUserAgent, "Accept": "text/html,*/*"}
	var misses []error
	for _, symbol := range company.SymbolCandidates() {
		pageURL := e.TranscriptURL(exchange, symbol, period)
		body, err := get(ctx, e.client, EarningsCallName, pageURL, headers)
		if err != nil {
			if errors.Is(err, services.ErrInputUnavailable) {
				misses = append(misses, err)
				continue
			}
			return RawTranscript{}, err
		}

		rendered, err := htmlToText(body)
		if err != nil {
			return RawTranscript{}, services.Wrap(services.ErrPermanent, "fetch", EarningsCallName, "parse html", err)
		}
		text := trimTranscriptPage(rendered)
		if text == "" {
			return RawTranscript{}, services.Wrap(services.ErrInputUnavailable, "fetch", EarningsCallName,
				fmt.Sprintf("%s has no transcript text yet", pageURL), nil)
		}
		e.logger.Debug("earnings call transcript retrieved",
			logging.String("url", pageURL),
			logging.Int("bytes", len(text)),
		)
		return RawTranscript{Text: text, Source: EarningsCallName, URL: pageURL, RetrievedAt: e.now().UTC()}, nil
	}
	if len(misses) == 0 {
		return RawTranscript{}, services.Wrap(services.ErrInputUnavailable, "fetch", EarningsCallName,
			fmt.Sprintf("no symbol candidates for %s", company.Ticker), nil)
	}
	return RawTranscript{}, errors.Join(misses...)
}
