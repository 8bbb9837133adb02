// Package aggregator fetches account movements from the banking aggregator API
// and converts them to major currency units.
package aggregator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"fjacquet/budget-sync/internal/batch"
	"fjacquet/budget-sync/internal/logging"
	"fjacquet/budget-sync/internal/models"
	"fjacquet/budget-sync/internal/retry"
	"fjacquet/budget-sync/internal/syncerror"

	"github.com/shopspring/decimal"
)

// SourceName identifies the aggregator in errors, logs and Transaction.Source.
const SourceName = "aggregator"

// DefaultExponent applies when a movement does not state its minor unit exponent.
const DefaultExponent = 2

// Client is the aggregator REST client.
type Client struct {
	baseURL    string
	token      string
	accountID  string
	httpClient *http.Client
	retry      retry.Policy
	logger     logging.Logger
}

// NewClient creates a Client reading movements of accountID.
func NewClient(baseURL, token, accountID string, policy retry.Policy, logger logging.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		accountID:  accountID,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		retry:      policy,
		logger:     logging.OrDefault(logger),
	}
}

// SetHTTPClient replaces the default HTTP client.
func (c *Client) SetHTTPClient(h *http.Client) {
	c.httpClient = h
}

func (c *Client) Name() string {
	return SourceName
}

type movement struct {
	ID          string `json:"id"`
	BookingDate string `json:"booking_date"`
	Amount      struct {
		Value    int64  `json:"value"`
		Exponent *int32 `json:"exponent"`
		Currency string `json:"currency"`
	} `json:"amount"`
	Counterparty string `json:"counterparty"`
	Description  string `json:"description"`
}

type movementsResponse struct {
	Movements []movement `json:"movements"`
}

// FetchMovements lists the account movements booked in window.
func (c *Client) FetchMovements(ctx context.Context, window batch.DateRange) ([]models.Transaction, error) {
	q := url.Values{}
	if !window.Start.IsZero() {
		q.Set("from", window.Start.Format(models.DateLayout))
	}
	if !window.End.IsZero() {
		q.Set("to", window.End.Format(models.DateLayout))
	}
	endpoint := fmt.Sprintf("%s/accounts/%s/movements?%s", c.baseURL, url.PathEscape(c.accountID), q.Encode())

	var payload movementsResponse
	err := retry.Do(ctx, c.retry, func(ctx context.Context) error {
		return c.get(ctx, endpoint, &payload)
	})
	if err != nil {
		return nil, err
	}

	out := make([]models.Transaction, 0, len(payload.Movements))
	malformed := 0
	for _, m := range payload.Movements {
		tx := toTransaction(m)
		if tx.Invalid != nil {
			malformed++
		}
		out = append(out, tx)
	}

	c.logger.Debug("Fetched aggregator movements",
		logging.F(logging.FieldAccount, c.accountID),
		logging.F(logging.FieldCount, len(out)),
		logging.F("malformed", malformed))
	return out, nil
}

func (c *Client) get(ctx context.Context, endpoint string, out interface{}) error {
	const op = "list movements"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
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
		return &syncerror.FetchError{Source: SourceName, Op: op, StatusCode: resp.StatusCode, Err: errors.New(strings.TrimSpace(string(msg)))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &syncerror.FetchError{Source: SourceName, Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// ToMajorUnits converts an amount in minor units, e.g. cents with exponent 2.
func ToMajorUnits(value int64, exponent int32) decimal.Decimal {
	return decimal.New(value, -exponent)
}

// toTransaction converts m. A movement that cannot be converted comes back with
// Invalid set so the run reports it instead of losing it.
func toTransaction(m movement) models.Transaction {
	payee := strings.TrimSpace(m.Counterparty)
	if payee == "" {
		payee = strings.TrimSpace(m.Description)
	}
	date, err := models.ParseDate(m.BookingDate)
	if err != nil {
		return models.Transaction{
			Payee:     payee,
			Reference: m.ID,
			Notes:     m.Description,
			Source:    SourceName,
			Invalid:   fmt.Errorf("movement %s: %w", m.ID, err),
		}
	}
	exp := int32(DefaultExponent)
	if m.Amount.Exponent != nil {
		exp = *m.Amount.Exponent
	}
	return models.Transaction{
		Date:      date,
		Amount:    ToMajorUnits(m.Amount.Value, exp),
		Payee:     payee,
		Reference: m.ID,
		Notes:     m.Description,
		Source:    SourceName,
	}
}
