package sources_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"finpod/internal/roster"
	"finpod/internal/services"
	"finpod/internal/sources"
)

const transcriptPage = `<!doctype html>
<html><head><title>ACME Q1 2024</title><style>.x{color:red}</style></head>
<body>
<nav><ul><li>Search</li><li>Calendar</li><li>Pricing</li></ul></nav>
<header><h1>Acme Corp Q1 2024 Earnings Call</h1></header>
<main>
<div>Operator</div>
<p>Good day and welcome to the call.</p>
<div>Jane Doe</div>
<p>Revenue grew 10% &amp; margins expanded.</p>
<script>var tracking = "Operator";</script>
</main>
<footer><div>Disclaimer</div><p>This transcript may contain errors.</p><p>© 2024 EarningsCall</p></footer>
</body></html>`

var period = roster.Period{Year: 2024, Quarter: 1}

func acme() roster.Company {
	return roster.Company{Ticker: "ACME", Exchange: "NASDAQ"}
}

func TestEarningsCallFetch(t *testing.T) {
	var gotPath, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(transcriptPage))
	}))
	defer srv.Close()

	src := sources.NewEarningsCall(srv.URL, sources.WithHTTPClient(srv.Client()))
	raw, err := src.Fetch(context.Background(), acme(), period)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if gotPath != "/e/nasdaq/s/acme/y/2024/q/q1" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotUA == "" {
		t.Fatal("expected user agent header")
	}
	want := "Operator\n\nGood day and welcome to the call.\n\nJane Doe\n\nRevenue grew 10% & margins expanded."
	if raw.Text != want {
		t.Fatalf("unexpected text:\n%q\nwant\n%q", raw.Text, want)
	}
	if raw.Source != sources.EarningsCallName || raw.RetrievedAt.IsZero() {
		t.Fatalf("unexpected metadata: %+v", raw)
	}
}

func TestEarningsCallTriesSymbolCandidates(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if !strings.Contains(r.URL.Path, "/s/brk-b/") {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(transcriptPage))
	}))
	defer srv.Close()

	src := sources.NewEarningsCall(srv.URL, sources.WithHTTPClient(srv.Client()))
	company := roster.Company{Ticker: "BRK.B", Exchange: "nyse"}
	if _, err := src.Fetch(context.Background(), company, period); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(paths) != 2 || !strings.Contains(paths[0], "/s/brk.b/") {
		t.Fatalf("unexpected request sequence: %v", paths)
	}
}

func TestEarningsCallErrorsMapToTaxonomy(t *testing.T) {
	cases := []struct {
		name   string
		status int
		want   services.Outcome
	}{
		{"not found", http.StatusNotFound, services.OutcomeUnavailable},
		{"rate limited", http.StatusTooManyRequests, services.OutcomeTransient},
		{"server error", http.StatusBadGateway, services.OutcomeTransient},
		{"forbidden", http.StatusForbidden, services.OutcomePermanent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			src := sources.NewEarningsCall(srv.URL, sources.WithHTTPClient(srv.Client()))
			_, err := src.Fetch(context.Background(), acme(), period)
			if got := services.Classify(err); got != tc.want {
				t.Fatalf("status %d: got %s, want %s (%v)", tc.status, got, tc.want, err)
			}
		})
	}
}

func TestEarningsCallWithoutExchangeIsUnavailable(t *testing.T) {
	src := sources.NewEarningsCall("http://127.0.0.1:1")
	_, err := src.Fetch(context.Background(), roster.Company{Ticker: "ACME"}, period)
	if !errors.Is(err, services.ErrInputUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

func TestEarningsCallEmptyPageIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><nav><div>Search</div><div>Login</div></nav></body></html>`))
	}))
	defer srv.Close()

	src := sources.NewEarningsCall(srv.URL, sources.WithHTTPClient(srv.Client()))
	_, err := src.Fetch(context.Background(), acme(), period)
	if !errors.Is(err, services.ErrInputUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

const filingDoc = `<html><body><div><h2>PART I. FINANCIAL INFORMATION</h2>
<p>Net revenue for the quarter ended March 30, 2024 increased 10 percent compared with the prior year period, driven by higher volumes across every operating segment and favourable pricing in the consumer business.</p>
<p>Operating margin expanded 150 basis points as gross margin improvement more than offset increased investment in research and development and selling expenses.</p>
</div></body></html>`

func newSECServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/files/company_tickers.json", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if !strings.Contains(r.Header.Get("User-Agent"), "ops@example.com") {
			t.Errorf("missing identity in user agent: %q", r.Header.Get("User-Agent"))
		}
		_, _ = w.Write([]byte(`{"0":{"cik_str":320193,"ticker":"ACME","title":"Acme Corp"},"1":{"cik_str":1067983,"ticker":"BRK-B","title":"Berkshire"}}`))
	})
	mux.HandleFunc("/submissions/CIK0000320193.json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"name":"Acme Corp","filings":{"recent":{
			"form":["8-K","10-Q","10-Q"],
			"accessionNumber":["0000320193-24-000090","0000320193-24-000081","0000320193-24-000010"],
			"filingDate":["2024-08-01","2024-05-03","2024-02-02"],
			"reportDate":["2024-08-01","2024-03-30","2023-12-30"],
			"primaryDocument":["ex.htm","acme-20240330.htm","acme-20231230.htm"]}}}`))
	})
	mux.HandleFunc("/Archives/edgar/data/320193/000032019324000081/acme-20240330.htm", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(filingDoc))
	})
	return httptest.NewServer(mux)
}

func TestSECFetchFindsQuarterlyFiling(t *testing.T) {
	var hits atomic.Int32
	srv := newSECServer(t, &hits)
	defer srv.Close()

	src := sources.NewSEC(sources.SECConfig{
		DataURL:     srv.URL,
		ArchivesURL: srv.URL + "/Archives/edgar/data",
		TickersURL:  srv.URL + "/files/company_tickers.json",
		Identity:    "ops@example.com",
	}, sources.WithHTTPClient(srv.Client()))

	filing, err := src.FindFiling(context.Background(), acme(), period)
	if err != nil {
		t.Fatalf("FindFiling: %v", err)
	}
	if filing.CIK != "0000320193" || filing.AccessionNumber != "0000320193-24-000081" || filing.Form != "10-Q" {
		t.Fatalf("unexpected filing: %+v", filing)
	}

	raw, err := src.Fetch(context.Background(), acme(), period)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !strings.Contains(raw.Text, "Net revenue for the quarter") {
		t.Fatalf("expected filing text, got %q", raw.Text)
	}
	if hits.Load() != 1 {
		t.Fatalf("expected ticker map fetched once, got %d", hits.Load())
	}

	_, err = src.Fetch(context.Background(), acme(), roster.Period{Year: 2024, Quarter: 2})
	if !errors.Is(err, services.ErrInputUnavailable) {
		t.Fatalf("expected unavailable for period without filing, got %v", err)
	}
}

func TestSECRequiresIdentity(t *testing.T) {
	src := sources.NewSEC(sources.SECConfig{DataURL: "http://127.0.0.1:1"})
	_, err := src.Fetch(context.Background(), acme(), period)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

type stubSource struct {
	name  string
	err   error
	text  string
	calls int
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Fetch(context.Context, roster.Company, roster.Period) (sources.RawTranscript, error) {
	s.calls++
	if s.err != nil {
		return sources.RawTranscript{}, s.err
	}
	return sources.RawTranscript{Text: s.text, Source: s.name}, nil
}

func TestChainFallsBackOnlyWhenUnavailable(t *testing.T) {
	unavailable := services.Wrap(services.ErrInputUnavailable, "fetch", "a", "not yet", nil)
	first := &stubSource{name: "a", err: unavailable}
	second := &stubSource{name: "b", text: "filing"}
	chain := sources.NewChain(nil, first, second)

	raw, err := chain.Fetch(context.Background(), acme(), period)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if raw.Source != "b" || chain.Name() != "a+b" {
		t.Fatalf("unexpected result %+v from %s", raw, chain.Name())
	}

	transient := services.Wrap(services.ErrTransient, "fetch", "a", "timeout", nil)
	first = &stubSource{name: "a", err: transient}
	second = &stubSource{name: "b", text: "filing"}
	_, err = sources.NewChain(nil, first, second).Fetch(context.Background(), acme(), period)
	if !errors.Is(err, services.ErrTransient) || second.calls != 0 {
		t.Fatalf("expected transient error without fallback, err=%v calls=%d", err, second.calls)
	}

	first = &stubSource{name: "a", err: unavailable}
	second = &stubSource{name: "b", err: unavailable}
	_, err = sources.NewChain(nil, first, second).Fetch(context.Background(), acme(), period)
	if services.Classify(err) != services.OutcomeUnavailable {
		t.Fatalf("expected unavailable when every source is empty, got %v", err)
	}
}
