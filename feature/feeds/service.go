package feeds

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"leadsync/core/notify"
	"leadsync/core/remote"
	"leadsync/feature/leads/models"
	"leadsync/feature/leads/store"
)

// Fetcher retrieves the raw feed for one keyword.
type Fetcher interface {
	FetchFeed(ctx context.Context, keyword string) ([]byte, error)
}

// HTTPFetcher is the production feed fetcher.
type HTTPFetcher struct {
	cfg  Config
	http *http.Client
}

// NewHTTPFetcher creates a feed fetcher from the configuration.
func NewHTTPFetcher(cfg Config) *HTTPFetcher {
	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = 30
	}
	return &HTTPFetcher{
		cfg:  cfg,
		http: &http.Client{Timeout: time.Duration(timeout) * time.Second},
	}
}

// FetchFeed downloads the atom feed for one search keyword.
func (f *HTTPFetcher) FetchFeed(ctx context.Context, keyword string) ([]byte, error) {
	endpoint := fmt.Sprintf("%s?%s", f.cfg.FeedURL,
		url.Values{"q": {keyword}, "paging": {"0"}}.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("feeds: build request: %w", err)
	}
	resp, err := f.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feeds: fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &remote.StatusError{Code: resp.StatusCode}
	}
	return io.ReadAll(resp.Body)
}

// Service runs feed discovery: fetch, parse, dedupe, and save new postings.
type Service struct {
	logger  *zap.Logger
	store   *store.Store
	scraper *Scraper
	fetcher Fetcher
	sink    notify.Sink
	table   *models.Table
	cfg     Config
}

// NewService creates a feeds service.
func NewService(logger *zap.Logger, st *store.Store, scraper *Scraper, fetcher Fetcher, sink notify.Sink, table *models.Table, cfg Config) *Service {
	return &Service{
		logger:  logger,
		store:   st,
		scraper: scraper,
		fetcher: fetcher,
		sink:    sink,
		table:   table,
		cfg:     cfg,
	}
}

// Keywords lists the configured search keywords.
func (s *Service) Keywords() []string {
	var out []string
	for _, kw := range strings.Split(s.cfg.Keywords, ",") {
		if kw = strings.TrimSpace(kw); kw != "" {
			out = append(out, kw)
		}
	}
	return out
}

// Run performs one discovery pass over every keyword.
func (s *Service) Run(ctx context.Context) (int, error) {
	total := 0
	for _, keyword := range s.Keywords() {
		saved, err := s.runKeyword(ctx, keyword)
		if err != nil {
			s.logger.Error("keyword discovery failed",
				zap.String("keyword", keyword), zap.Error(err))
			s.sink.Enqueue(ctx, notify.LevelWarning, "feed discovery failed",
				fmt.Sprintf("%s: %v", keyword, err))
			continue
		}
		total += saved
	}
	return total, nil
}

// runKeyword fetches and saves one keyword's feed. Postings already saved
// are skipped; postings repeating a (title, country, project type) triple
// already seen this month are saved flagged as probable duplicates.
func (s *Service) runKeyword(ctx context.Context, keyword string) (int, error) {
	var data []byte
	err := remote.WithRetry(ctx, s.logger, s.cfg.MaxRetries, time.Second, "fetch feed", func() error {
		var err error
		data, err = s.fetcher.FetchFeed(ctx, keyword)
		return err
	})
	if err != nil {
		return 0, err
	}

	postings, err := s.scraper.Parse(data, keyword)
	if err != nil {
		return 0, err
	}
	if len(postings) == 0 {
		return 0, nil
	}

	// Dedupe within the batch first; feeds repeat entries across pages.
	seen := make(map[string]struct{}, len(postings))
	unique := postings[:0]
	urls := make([]string, 0, len(postings))
	for _, posting := range postings {
		if _, dup := seen[posting.URL]; dup {
			s.logger.Warn("duplicate posting url in feed",
				zap.String("keyword", keyword),
				zap.String("url", posting.URL))
			continue
		}
		seen[posting.URL] = struct{}{}
		unique = append(unique, posting)
		urls = append(urls, posting.URL)
	}

	existing, err := s.store.ExistingURLs(ctx, s.table, urls)
	if err != nil {
		return 0, err
	}
	monthKeys, err := s.store.MonthKeys(ctx, s.table, time.Now())
	if err != nil {
		return 0, err
	}

	var records []*models.Record
	for _, posting := range unique {
		if _, saved := existing[posting.URL]; saved {
			continue
		}
		rec := &models.Record{
			IdentityURL: posting.URL,
			Keyword:     posting.Keyword,
			Fields:      posting.Fields,
		}
		if _, dup := monthKeys[store.MonthKey(rec)]; dup {
			rec.Duplicate = true
		} else {
			monthKeys[store.MonthKey(rec)] = struct{}{}
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return 0, nil
	}

	created, failed := s.store.BulkCreate(ctx, s.table, records, 50)
	if failed > 0 {
		s.sink.Enqueue(ctx, notify.LevelWarning, "postings skipped at insert",
			fmt.Sprintf("%s: %d rows violated constraints", keyword, failed))
	}
	s.logger.Info("discovery pass finished",
		zap.String("keyword", keyword),
		zap.Int("parsed", len(postings)),
		zap.Int("created", created))
	return created, nil
}
