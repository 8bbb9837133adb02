// Package budget is the REST client of the budgeting service.
package budget

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"fjacquet/budget-sync/internal/batch"
	"fjacquet/budget-sync/internal/logging"
	"fjacquet/budget-sync/internal/models"
	"fjacquet/budget-sync/internal/retry"
	"fjacquet/budget-sync/internal/syncerror"

	"github.com/shopspring/decimal"
)

// SourceName identifies the service in errors and logs.
const SourceName = "budget"

// DefaultPageSize is the page size used when listing transactions.
const DefaultPageSize = 100

// Client talks to the budgeting service with a bearer token.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	retry      retry.Policy
	pageSize   int
	logger     logging.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithRetry sets the retry policy of read calls. Inserts are sent once and
// retried by the caller per batch.
func WithRetry(p retry.Policy) Option {
	return func(cl *Client) { cl.retry = p }
}

// WithPageSize sets the page size of transaction listings.
func WithPageSize(n int) Option {
	return func(cl *Client) {
		if n > 0 {
			cl.pageSize = n
		}
	}
}

// NewClient creates a Client for baseURL.
func NewClient(baseURL, token string, logger logging.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		retry:      retry.DefaultPolicy(),
		pageSize:   DefaultPageSize,
		logger:     logging.OrDefault(logger),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type categoryDTO struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type transactionDTO struct {
	Date       string          `json:"date"`
	Amount     decimal.Decimal `json:"amount"`
	Payee      string          `json:"payee"`
	Reference  string          `json:"reference,omitempty"`
	Notes      string          `json:"notes,omitempty"`
	CategoryID *int64          `json:"category_id,omitempty"`
}

type transactionsPage struct {
	Transactions []transactionDTO `json:"transactions"`
}

type insertRequest struct {
	Transactions []transactionDTO `json:"transactions"`
}

// ListCategories returns every category of the service.
func (c *Client) ListCategories(ctx context.Context) ([]models.Category, error) {
	var payload struct {
		Categories []categoryDTO `json:"categories"`
	}
	if err := c.do(ctx, c.retry, "list categories", http.MethodGet, "/categories", nil, &payload); err != nil {
		return nil, err
	}

	out := make([]models.Category, 0, len(payload.Categories))
	for _, cat := range payload.Categories {
		out = append(out, models.Category{ID: cat.ID, Name: cat.Name})
	}
	return out, nil
}

// FetchTransactions pages through the account transactions in window until a
// page comes back empty. The service may cap per_page below the requested size,
// so a short page does not end the listing.
func (c *Client) FetchTransactions(ctx context.Context, window batch.DateRange, accountID string) ([]models.Transaction, error) {
	var out []models.Transaction
	for page := 1; ; page++ {
		q := url.Values{}
		if !window.Start.IsZero() {
			q.Set("since", window.Start.Format(models.DateLayout))
		}
		if !window.End.IsZero() {
			q.Set("until", window.End.Format(models.DateLayout))
		}
		q.Set("page", strconv.Itoa(page))
		q.Set("per_page", strconv.Itoa(c.pageSize))

		var payload transactionsPage
		path := fmt.Sprintf("/accounts/%s/transactions?%s", url.PathEscape(accountID), q.Encode())
		if err := c.do(ctx, c.retry, "list transactions", http.MethodGet, path, nil, &payload); err != nil {
			return nil, err
		}

		for _, dto := range payload.Transactions {
			tx, err := fromDTO(dto)
			if err != nil {
				return nil, &syncerror.FetchError{Source: SourceName, Op: "list transactions", StatusCode: http.StatusOK, Err: err}
			}
			out = append(out, tx)
		}

		c.logger.Debug("Fetched transaction page",
			logging.F(logging.FieldAccount, accountID),
			logging.F("page", page),
			logging.F(logging.FieldCount, len(payload.Transactions)))

		if len(payload.Transactions) == 0 {
			return out, nil
		}
	}
}

// InsertTransactions posts one batch.
func (c *Client) InsertTransactions(ctx context.Context, accountID string, txs []models.Transaction) error {
	if len(txs) > batch.MaxSize {
		return fmt.Errorf("batch of %d exceeds the limit of %d", len(txs), batch.MaxSize)
	}
	req := insertRequest{Transactions: make([]transactionDTO, 0, len(txs))}
	for _, tx := range txs {
		req.Transactions = append(req.Transactions, toDTO(tx))
	}
	path := fmt.Sprintf("/accounts/%s/transactions", url.PathEscape(accountID))
	return c.do(ctx, retry.Policy{MaxAttempts: 1}, "insert transactions", http.MethodPost, path, req, nil)
}

// do performs one call under policy, decoding a JSON answer into out when set.
func (c *Client) do(ctx context.Context, policy retry.Policy, op, method, path string, body, out interface{}) error {
	var encoded []byte
	if body != nil {
		var err error
		encoded, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
	}

	return retry.Do(ctx, policy, func(ctx context.Context) error {
		var reader io.Reader
		if encoded != nil {
			reader = bytes.NewReader(encoded)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return fmt.Errorf("%s: build request: %w", op, err)
		}
		req.Header.Set("Accept", "application/json")
		if encoded != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return &syncerror.FetchError{Source: SourceName, Op: op, Err: err}
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return &syncerror.FetchError{
				Source:     SourceName,
				Op:         op,
				StatusCode: resp.StatusCode,
				Err:        errors.New(strings.TrimSpace(string(msg))),
			}
		}

		if out == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &syncerror.FetchError{Source: SourceName, Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
		}
		return nil
	})
}

func fromDTO(dto transactionDTO) (models.Transaction, error) {
	date, err := models.ParseDate(dto.Date)
	if err != nil {
		return models.Transaction{}, err
	}
	tx := models.Transaction{
		Date:      date,
		Amount:    dto.Amount,
		Payee:     dto.Payee,
		Reference: dto.Reference,
		Notes:     dto.Notes,
	}
	if dto.CategoryID != nil {
		tx.CategoryID = *dto.CategoryID
	}
	return tx, nil
}

func toDTO(tx models.Transaction) transactionDTO {
	dto := transactionDTO{
		Date:      tx.DateString(),
		Amount:    tx.Amount.Round(2),
		Payee:     tx.Payee,
		Reference: tx.Reference,
		Notes:     tx.Notes,
	}
	if tx.CategoryID != 0 {
		id := tx.CategoryID
		dto.CategoryID = &id
	}
	return dto
}
