package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"leadsync/core/utils"
)

// Record is a single remote row: an opaque remote identifier plus a map of
// remote field name (or field id, in webhook payloads) to value.
type Record struct {
	ID     string         `json:"id,omitempty"`
	Fields map[string]any `json:"fields"`
}

// SchemaField describes one field of a remote table.
type SchemaField struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// SchemaTable describes one remote table.
type SchemaTable struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	PrimaryFieldID string        `json:"primaryFieldId"`
	Fields         []SchemaField `json:"fields"`
}

// Schema is the full base schema.
type Schema struct {
	Tables []SchemaTable `json:"tables"`
}

// WebhookInfo is returned when a change webhook is registered.
type WebhookInfo struct {
	ID             string `json:"id"`
	MACSecret      string `json:"macSecretBase64"`
	ExpirationTime string `json:"expirationTime"`
}

// CellValues holds the changed cells of one record keyed by field id.
type CellValues struct {
	CellValuesByFieldID map[string]any `json:"cellValuesByFieldId"`
}

// RecordChange describes the change applied to one record.
type RecordChange struct {
	Current *CellValues `json:"current"`
}

// TableChanges groups record changes for one table.
type TableChanges struct {
	ChangedRecordsByID map[string]RecordChange `json:"changedRecordsById"`
}

// Payload is one incremental change payload.
type Payload struct {
	ChangedTablesByID map[string]TableChanges `json:"changedTablesById"`
}

// PayloadPage is a page of change payloads plus the advancing cursor.
type PayloadPage struct {
	Cursor        int       `json:"cursor"`
	MightHaveMore bool      `json:"mightHaveMore"`
	Payloads      []Payload `json:"payloads"`
}

// Client is the narrow interface the reconciliation engine consumes.
// The HTTP implementation below is the production client; tests substitute
// in-memory fakes.
type Client interface {
	ListRecords(ctx context.Context, table string) ([]Record, error)
	BatchCreate(ctx context.Context, table string, records []Record) ([]Record, error)
	BatchUpdate(ctx context.Context, table string, records []Record) error
	BaseSchema(ctx context.Context) (*Schema, error)
	CreateWebhook(ctx context.Context, notificationURL, tableID string) (*WebhookInfo, error)
	ListPayloads(ctx context.Context, webhookID string, cursor int) (*PayloadPage, error)
}

// StatusError is returned for non-2xx responses so callers can branch on the
// status code (enrichment treats 403 and 404 as terminal states).
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("remote: unexpected status %d: %s", e.Code, e.Body)
}

// HTTPClient talks to the remote table service over its JSON API.
type HTTPClient struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
}

// NewHTTPClient creates a rate-limited client from the configuration.
func NewHTTPClient(cfg Config) *HTTPClient {
	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = 30
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	return &HTTPClient{
		cfg:     cfg,
		http:    &http.Client{Timeout: time.Duration(timeout) * time.Second},
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
	}
}

// BatchSize returns the service's records-per-request cap.
func (c *HTTPClient) BatchSize() int {
	if c.cfg.BatchSize <= 0 {
		return 10
	}
	return c.cfg.BatchSize
}

func (c *HTTPClient) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	u := c.cfg.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("remote: encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode, Body: string(data)}
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("remote: decode response: %w", err)
		}
	}
	return nil
}

// ListRecords fetches every record of a table, following pagination offsets.
func (c *HTTPClient) ListRecords(ctx context.Context, table string) ([]Record, error) {
	var all []Record
	offset := ""
	for {
		query := url.Values{}
		if offset != "" {
			query.Set("offset", offset)
		}
		var page struct {
			Records []Record `json:"records"`
			Offset  string   `json:"offset"`
		}
		path := fmt.Sprintf("/%s/%s", c.cfg.BaseID, url.PathEscape(table))
		if err := c.do(ctx, http.MethodGet, path, query, nil, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Records...)
		if page.Offset == "" {
			return all, nil
		}
		offset = page.Offset
	}
}

// BatchCreate creates records in service-sized chunks and returns the created
// records with their assigned remote ids, in input order.
func (c *HTTPClient) BatchCreate(ctx context.Context, table string, records []Record) ([]Record, error) {
	path := fmt.Sprintf("/%s/%s", c.cfg.BaseID, url.PathEscape(table))
	var created []Record
	for _, chunk := range utils.Chunk(records, c.BatchSize()) {
		var resp struct {
			Records []Record `json:"records"`
		}
		if err := c.do(ctx, http.MethodPost, path, nil, map[string]any{"records": chunk}, &resp); err != nil {
			return created, err
		}
		created = append(created, resp.Records...)
	}
	return created, nil
}

// BatchUpdate patches records in service-sized chunks. Records must carry
// their remote id and only the fields to change.
func (c *HTTPClient) BatchUpdate(ctx context.Context, table string, records []Record) error {
	path := fmt.Sprintf("/%s/%s", c.cfg.BaseID, url.PathEscape(table))
	for _, chunk := range utils.Chunk(records, c.BatchSize()) {
		if err := c.do(ctx, http.MethodPatch, path, nil, map[string]any{"records": chunk}, nil); err != nil {
			return err
		}
	}
	return nil
}

// BaseSchema fetches the table/field schema of the configured base.
func (c *HTTPClient) BaseSchema(ctx context.Context) (*Schema, error) {
	var schema Schema
	path := fmt.Sprintf("/meta/bases/%s/tables", c.cfg.BaseID)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &schema); err != nil {
		return nil, err
	}
	return &schema, nil
}

// CreateWebhook registers a change webhook scoped to one table.
func (c *HTTPClient) CreateWebhook(ctx context.Context, notificationURL, tableID string) (*WebhookInfo, error) {
	body := map[string]any{
		"notificationUrl": notificationURL,
		"specification": map[string]any{
			"options": map[string]any{
				"filters": map[string]any{
					"fromSources":       []string{"client"},
					"dataTypes":         []string{"tableData"},
					"recordChangeScope": tableID,
				},
			},
		},
	}
	var info WebhookInfo
	path := fmt.Sprintf("/bases/%s/webhooks", c.cfg.BaseID)
	if err := c.do(ctx, http.MethodPost, path, nil, body, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// ListPayloads fetches change payloads newer than cursor.
// Accessing this resource also renews the webhook's expiration upstream.
func (c *HTTPClient) ListPayloads(ctx context.Context, webhookID string, cursor int) (*PayloadPage, error) {
	query := url.Values{}
	query.Set("cursor", fmt.Sprintf("%d", cursor))
	var page PayloadPage
	path := fmt.Sprintf("/bases/%s/webhooks/%s/payloads", c.cfg.BaseID, webhookID)
	if err := c.do(ctx, http.MethodGet, path, query, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}
