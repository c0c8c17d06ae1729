package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/xaenox/ledger-categorizer/internal/models"
	"go.uber.org/zap"
)

var (
	// ErrTransactionEmpty is returned when a transaction has no splits.
	ErrTransactionEmpty = errors.New("transaction has no splits")
	// ErrCategoryNotFound is returned by FindCategory when no category has the name.
	ErrCategoryNotFound = errors.New("category not found")
	// ErrUnexpectedStatus wraps any non-success HTTP status from the ledger.
	ErrUnexpectedStatus = errors.New("unexpected ledger response status")
)

// maxCategoryPages bounds the category listing walk.
const maxCategoryPages = 100

type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// FireflyClient talks to the Firefly III REST API.
type FireflyClient struct {
	httpClient *http.Client
	baseURL    string
	token      string
	logger     *zap.Logger
}

func NewFireflyClient(cfg Config, logger *zap.Logger) *FireflyClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &FireflyClient{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		token:   cfg.Token,
		logger:  logger,
	}
}

type categoryResource struct {
	ID         string `json:"id"`
	Attributes struct {
		Name string `json:"name"`
	} `json:"attributes"`
}

type categoryList struct {
	Data []categoryResource `json:"data"`
	Meta struct {
		Pagination struct {
			CurrentPage int `json:"current_page"`
			TotalPages  int `json:"total_pages"`
		} `json:"pagination"`
	} `json:"meta"`
}

type categoryEnvelope struct {
	Data categoryResource `json:"data"`
}

type transactionEnvelope struct {
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			Transactions []models.WebhookTransaction `json:"transactions"`
		} `json:"attributes"`
	} `json:"data"`
}

type transactionUpdate struct {
	ApplyRules   bool                     `json:"apply_rules"`
	FireWebhooks bool                     `json:"fire_webhooks"`
	Transactions []transactionSplitUpdate `json:"transactions"`
}

type transactionSplitUpdate struct {
	CategoryID string `json:"category_id"`
}

// ApplyCategory resolves name to a ledger category, creating it if needed,
// and assigns it to the transaction journal.
func (c *FireflyClient) ApplyCategory(ctx context.Context, journalID, name string) error {
	categoryID, err := c.FindOrCreateCategory(ctx, name)
	if err != nil {
		return err
	}
	return c.UpdateTransactionCategory(ctx, journalID, categoryID)
}

// FindOrCreateCategory returns the id of the category called name, compared
// case-insensitively, creating it when absent.
func (c *FireflyClient) FindOrCreateCategory(ctx context.Context, name string) (string, error) {
	id, err := c.FindCategory(ctx, name)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, ErrCategoryNotFound) {
		return "", err
	}

	c.logger.Info("Creating ledger category", zap.String("category", name))
	return c.CreateCategory(ctx, name)
}

// FindCategory walks every page of the category list looking for name.
func (c *FireflyClient) FindCategory(ctx context.Context, name string) (string, error) {
	for page := 1; page <= maxCategoryPages; page++ {
		var list categoryList
		path := fmt.Sprintf("/api/v1/categories?page=%d", page)
		if err := c.do(ctx, http.MethodGet, path, nil, &list); err != nil {
			return "", fmt.Errorf("failed to list categories: %w", err)
		}

		for _, cat := range list.Data {
			if strings.EqualFold(cat.Attributes.Name, name) {
				return cat.ID, nil
			}
		}

		if page >= list.Meta.Pagination.TotalPages {
			break
		}
	}
	return "", fmt.Errorf("%w: %s", ErrCategoryNotFound, name)
}

func (c *FireflyClient) CreateCategory(ctx context.Context, name string) (string, error) {
	var created categoryEnvelope
	if err := c.do(ctx, http.MethodPost, "/api/v1/categories", map[string]string{"name": name}, &created); err != nil {
		return "", fmt.Errorf("failed to create category %q: %w", name, err)
	}
	if created.Data.ID == "" {
		return "", fmt.Errorf("ledger returned no id for category %q", name)
	}
	return created.Data.ID, nil
}

// UpdateTransactionCategory sets the category on a transaction journal.
// Rules and webhooks are disabled so the update does not re-trigger this service.
func (c *FireflyClient) UpdateTransactionCategory(ctx context.Context, journalID, categoryID string) error {
	payload := transactionUpdate{
		ApplyRules:   false,
		FireWebhooks: false,
		Transactions: []transactionSplitUpdate{{CategoryID: categoryID}},
	}
	path := "/api/v1/transactions/" + url.PathEscape(journalID)
	if err := c.do(ctx, http.MethodPut, path, payload, nil); err != nil {
		return fmt.Errorf("failed to update transaction %s: %w", journalID, err)
	}
	return nil
}

// GetTransaction fetches a transaction and returns its first split, which
// carries the journal id, description and current category name.
func (c *FireflyClient) GetTransaction(ctx context.Context, id string) (models.WebhookTransaction, error) {
	var envelope transactionEnvelope
	path := "/api/v1/transactions/" + url.PathEscape(id)
	if err := c.do(ctx, http.MethodGet, path, nil, &envelope); err != nil {
		return models.WebhookTransaction{}, fmt.Errorf("failed to fetch transaction %s: %w", id, err)
	}

	splits := envelope.Data.Attributes.Transactions
	if len(splits) == 0 {
		return models.WebhookTransaction{}, fmt.Errorf("%w: %s", ErrTransactionEmpty, id)
	}
	return splits[0], nil
}

// Ping checks the ledger is reachable with the configured token.
func (c *FireflyClient) Ping(ctx context.Context) error {
	if err := c.do(ctx, http.MethodGet, "/api/v1/about", nil, nil); err != nil {
		return fmt.Errorf("ledger unreachable: %w", err)
	}
	return nil
}

func (c *FireflyClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.api+json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s %s returned %d: %s",
			ErrUnexpectedStatus, method, path, resp.StatusCode, truncate(string(data), 200))
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
