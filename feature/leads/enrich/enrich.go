package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"leadsync/core/remote"
	"leadsync/feature/leads/fieldmap"
	"leadsync/feature/leads/models"
)

// Client fetches the detail bundle of one posting. The returned values are
// keyed by local field names.
type Client interface {
	Fetch(ctx context.Context, token, postingURL string) (models.FieldValues, error)
}

// HTTPClient is the production detail fetcher.
type HTTPClient struct {
	cfg  Config
	http *http.Client
}

// NewHTTPClient creates a detail fetcher from the configuration.
func NewHTTPClient(cfg Config) *HTTPClient {
	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = 30
	}
	return &HTTPClient{
		cfg:  cfg,
		http: &http.Client{Timeout: time.Duration(timeout) * time.Second},
	}
}

// Fetch requests the posting detail. Non-2xx responses surface as
// *remote.StatusError so the enricher can branch on the code.
func (c *HTTPClient) Fetch(ctx context.Context, token, postingURL string) (models.FieldValues, error) {
	endpoint := fmt.Sprintf("%s/postings/detail?%s", c.cfg.BaseURL,
		url.Values{"url": {postingURL}}.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("enrich: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("enrich: fetch detail: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &remote.StatusError{Code: resp.StatusCode}
	}

	var bundle models.FieldValues
	if err := json.NewDecoder(resp.Body).Decode(&bundle); err != nil {
		return nil, fmt.Errorf("enrich: decode detail: %w", err)
	}
	return bundle, nil
}

// Enricher applies detail bundles to records, handling the terminal posting
// states and token rotation.
type Enricher struct {
	log    *zap.Logger
	client Client
	tokens *TokenSource
	cfg    Config
}

// New creates an enricher.
func New(log *zap.Logger, client Client, tokens *TokenSource, cfg Config) *Enricher {
	return &Enricher{log: log, client: client, tokens: tokens, cfg: cfg}
}

// Enrich fetches the detail of one record and folds it in. It returns the
// set of changed field names, flags included.
//
// A 403 marks the posting private and a 404 marks it removed with the
// removal date; both also mark the url invalid so no further enrichment is
// scheduled. A 401 or 429 drops
// the current token and retries with the next one. ErrNoTokens propagates
// so the cycle can escalate a critical notification.
func (e *Enricher) Enrich(ctx context.Context, table *models.Table, rec *models.Record) (map[string]struct{}, error) {
	attempts := e.cfg.MaxRetries
	if attempts <= 0 {
		attempts = 1
	}
	backoff := time.Duration(e.cfg.BackoffMillis) * time.Millisecond

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		token, err := e.tokens.Next()
		if err != nil {
			return nil, err
		}

		bundle, err := e.client.Fetch(ctx, token, rec.IdentityURL)
		if err == nil {
			return e.apply(table, rec, bundle), nil
		}

		var status *remote.StatusError
		if errors.As(err, &status) {
			switch status.Code {
			case http.StatusForbidden:
				rec.Private = true
				rec.Invalid = true
				e.log.Info("posting is private",
					zap.String("table", table.Name),
					zap.String("url", rec.IdentityURL))
				return changedSet("private", "invalid"), nil
			case http.StatusNotFound:
				now := time.Now()
				rec.Removed = true
				rec.RemovedDate = &now
				rec.Invalid = true
				e.log.Info("posting was removed",
					zap.String("table", table.Name),
					zap.String("url", rec.IdentityURL))
				return changedSet("removed", "removed_date", "invalid"), nil
			case http.StatusUnauthorized, http.StatusTooManyRequests:
				e.log.Warn("token rejected, rotating",
					zap.Int("status", status.Code),
					zap.Int("remaining", e.tokens.Remaining()-1))
				e.tokens.Invalidate(token)
				lastErr = err
				continue
			}
		}

		lastErr = err
		e.log.Warn("detail fetch failed, retrying",
			zap.String("url", rec.IdentityURL),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if attempt < attempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return nil, fmt.Errorf("enrich %s: %w", rec.IdentityURL, lastErr)
}

// apply folds the detail bundle into the record. The record counts as
// enriched only once the decisive field arrived.
func (e *Enricher) apply(table *models.Table, rec *models.Record, bundle models.FieldValues) map[string]struct{} {
	changed, _ := fieldmap.ApplyChanges(table.Registry, rec, bundle)
	decisive := table.EnrichedField
	if decisive == "" {
		return changed
	}
	if _, ok := rec.Get(decisive); ok && !rec.Enriched {
		rec.Enriched = true
		changed["enriched"] = struct{}{}
	}
	return changed
}

func changedSet(names ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(names))
	for _, name := range names {
		out[name] = struct{}{}
	}
	return out
}
