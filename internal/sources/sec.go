package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-shiori/go-readability"

	"finpod/internal/logging"
	"finpod/internal/roster"
	"finpod/internal/services"
)

// SECName identifies the EDGAR filing source in configuration.
const SECName = "sec"

const minReadableRunes = 200

// SECConfig locates the EDGAR endpoints. Identity is the contact string SEC
// requires in the User-Agent header.
type SECConfig struct {
	DataURL     string
	ArchivesURL string
	TickersURL  string
	Identity    string
}

// SEC retrieves the quarterly report filed for a period.
type SEC struct {
	cfg    SECConfig
	client *http.Client
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	tickers map[string]string
}

// NewSEC constructs the EDGAR source.
func NewSEC(cfg SECConfig, opts ...Option) *SEC {
	o := applyOptions(opts)
	cfg.DataURL = strings.TrimRight(strings.TrimSpace(cfg.DataURL), "/")
	cfg.ArchivesURL = strings.TrimRight(strings.TrimSpace(cfg.ArchivesURL), "/")
	cfg.TickersURL = strings.TrimSpace(cfg.TickersURL)
	cfg.Identity = strings.TrimSpace(cfg.Identity)
	return &SEC{cfg: cfg, client: o.client, logger: o.logger, now: time.Now}
}

// Name implements Source.
func (s *SEC) Name() string { return SECName }

// Filing describes one EDGAR filing.
type Filing struct {
	CIK             string
	CompanyName     string
	Form            string
	AccessionNumber string
	FilingDate      string
	ReportDate      string
	PrimaryDocument string
}

// DocumentURL is the address of the filing's primary document.
func (f Filing) DocumentURL(archivesURL string) string {
	cik := strings.TrimLeft(f.CIK, "0")
	accession := strings.ReplaceAll(f.AccessionNumber, "-", "")
	return fmt.Sprintf("%s/%s/%s/%s", strings.TrimRight(archivesURL, "/"), cik, accession, f.PrimaryDocument)
}

// Fetch downloads the period's quarterly filing and extracts its text.
func (s *SEC) Fetch(ctx context.Context, company roster.Company, period roster.Period) (RawTranscript, error) {
	filing, err := s.FindFiling(ctx, company, period)
	if err != nil {
		return RawTranscript{}, err
	}
	docURL := filing.DocumentURL(s.cfg.ArchivesURL)
	body, err := get(ctx, s.client, SECName, docURL, s.headers("text/html,*/*"))
	if err != nil {
		return RawTranscript{}, err
	}
	text, err := extractFilingText(body, docURL)
	if err != nil {
		return RawTranscript{}, services.Wrap(services.ErrPermanent, "fetch", SECName, "extract filing text", err)
	}
	if strings.TrimSpace(text) == "" {
		return RawTranscript{}, services.Wrap(services.ErrPermanent, "fetch", SECName, docURL+" has no text", nil)
	}
	s.logger.Debug("sec filing retrieved",
		logging.String("form", filing.Form),
		logging.String("accession", filing.AccessionNumber),
		logging.String("report_date", filing.ReportDate),
		logging.String("url", docURL),
	)
	return RawTranscript{Text: text, Source: SECName, URL: docURL, RetrievedAt: s.now().UTC()}, nil
}

// FindFiling returns the most recent 10-Q whose report date falls in period.
// Fourth quarters are covered by the annual 10-K.
func (s *SEC) FindFiling(ctx context.Context, company roster.Company, period roster.Period) (Filing, error) {
	if s.cfg.Identity == "" {
		return Filing{}, services.Wrap(services.ErrConfiguration, "fetch", SECName, "sec identity required (set SEC_IDENTITY)", nil)
	}
	cik, err := s.resolveCIK(ctx, company)
	if err != nil {
		return Filing{}, err
	}

	body, err := get(ctx, s.client, SECName, fmt.Sprintf("%s/submissions/CIK%s.json", s.cfg.DataURL, cik), s.headers("application/json"))
	if err != nil {
		return Filing{}, err
	}
	var payload submissions
	if err := json.Unmarshal(body, &payload); err != nil {
		return Filing{}, services.Wrap(services.ErrPermanent, "fetch", SECName, "decode submissions", err)
	}

	recent := payload.Filings.Recent
	forms := map[string]struct{}{"10-Q": {}}
	if period.Quarter == 4 {
		forms["10-K"] = struct{}{}
	}
	for i, form := range recent.Form {
		if _, ok := forms[form]; !ok {
			continue
		}
		report := at(recent.ReportDate, i)
		reportDate, err := time.Parse("2006-01-02", report)
		if err != nil || !period.Contains(reportDate) {
			continue
		}
		filing := Filing{
			CIK:             cik,
			CompanyName:     payload.Name,
			Form:            form,
			AccessionNumber: at(recent.AccessionNumber, i),
			FilingDate:      at(recent.FilingDate, i),
			ReportDate:      report,
			PrimaryDocument: at(recent.PrimaryDocument, i),
		}
		if filing.AccessionNumber == "" || filing.PrimaryDocument == "" {
			continue
		}
		return filing, nil
	}
	return Filing{}, services.Wrap(services.ErrInputUnavailable, "fetch", SECName,
		fmt.Sprintf("no quarterly filing for %s in %s", company.Ticker, period), nil)
}

type submissions struct {
	Name    string `json:"name"`
	Filings struct {
		Recent struct {
			AccessionNumber []string `json:"accessionNumber"`
			FilingDate      []string `json:"filingDate"`
			ReportDate      []string `json:"reportDate"`
			Form            []string `json:"form"`
			PrimaryDocument []string `json:"primaryDocument"`
		} `json:"recent"`
	} `json:"filings"`
}

type tickerEntry struct {
	CIK    json.Number `json:"cik_str"`
	Ticker string      `json:"ticker"`
	Title  string      `json:"title"`
}

func at(values []string, i int) string {
	if i < len(values) {
		return values[i]
	}
	return ""
}

func (s *SEC) headers(accept string) map[string]string {
	return map[string]string{
		"User-Agent": fmt.Sprintf("finpod (%s)", s.cfg.Identity),
		"Accept":     accept,
	}
}

// resolveCIK prefers the roster's CIK and otherwise consults the SEC ticker map.
func (s *SEC) resolveCIK(ctx context.Context, company roster.Company) (string, error) {
	if cik := strings.TrimSpace(company.CIK); cik != "" {
		return padCIK(cik)
	}
	tickers, err := s.loadTickers(ctx)
	if err != nil {
		return "", err
	}
	key := strings.ReplaceAll(roster.NormalizeTicker(company.Ticker), ".", "-")
	cik, ok := tickers[key]
	if !ok {
		return "", services.Wrap(services.ErrPermanent, "fetch", SECName,
			fmt.Sprintf("ticker %s not in SEC mapping", company.Ticker), nil)
	}
	return cik, nil
}

func (s *SEC) loadTickers(ctx context.Context) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tickers != nil {
		return s.tickers, nil
	}
	body, err := get(ctx, s.client, SECName, s.cfg.TickersURL, s.headers("application/json"))
	if err != nil {
		return nil, err
	}
	var entries map[string]tickerEntry
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	if err := decoder.Decode(&entries); err != nil {
		return nil, services.Wrap(services.ErrPermanent, "fetch", SECName, "decode ticker map", err)
	}
	tickers := make(map[string]string, len(entries))
	for _, entry := range entries {
		if entry.Ticker == "" {
			continue
		}
		cik, err := padCIK(entry.CIK.String())
		if err != nil {
			continue
		}
		tickers[strings.ReplaceAll(roster.NormalizeTicker(entry.Ticker), ".", "-")] = cik
	}
	s.tickers = tickers
	return tickers, nil
}

func padCIK(value string) (string, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || n <= 0 {
		return "", services.Wrap(services.ErrValidation, "fetch", SECName, fmt.Sprintf("invalid cik %q", value), err)
	}
	return fmt.Sprintf("%010d", n), nil
}

// extractFilingText runs readability over the document and falls back to a
// plain block-aware rendering when the article is too short to be the filing.
func extractFilingText(body []byte, docURL string) (string, error) {
	pageURL, _ := url.Parse(docURL)
	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err == nil {
		text := strings.TrimSpace(article.TextContent)
		if len([]rune(text)) >= minReadableRunes {
			return text, nil
		}
	}
	rendered, renderErr := htmlToText(body)
	if renderErr != nil {
		if err != nil {
			return "", err
		}
		return "", renderErr
	}
	return strings.TrimSpace(blankRuns.ReplaceAllString(horizontalSpace.ReplaceAllString(rendered, " "), "\n\n")), nil
}
