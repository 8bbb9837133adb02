package budget

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"fjacquet/budget-sync/internal/batch"
	"fjacquet/budget-sync/internal/logging"
	"fjacquet/budget-sync/internal/models"
	"fjacquet/budget-sync/internal/retry"
	"fjacquet/budget-sync/internal/syncerror"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noWait(attempts int) retry.Policy {
	return retry.Policy{MaxAttempts: attempts, Sleep: func(context.Context, time.Duration) error { return nil }}
}

func newTestClient(t *testing.T, h http.Handler, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	opts = append([]Option{WithRetry(noWait(3))}, opts...)
	return NewClient(srv.URL+"/", "secret", logging.NewMockLogger(), opts...)
}

func TestListCategories(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/categories", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"categories":[{"id":1,"name":"Coffee"},{"id":2,"name":"Food"}]}`))
	}))

	cats, err := c.ListCategories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.Category{{ID: 1, Name: "Coffee"}, {ID: 2, Name: "Food"}}, cats)
}

func TestFetchTransactions_Paginates(t *testing.T) {
	var pages []string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/accounts/acc 1/transactions", r.URL.Path)
		assert.Equal(t, "2024-01-01", r.URL.Query().Get("since"))
		assert.Equal(t, "2024-01-31", r.URL.Query().Get("until"))
		assert.Equal(t, "2", r.URL.Query().Get("per_page"))
		page := r.URL.Query().Get("page")
		pages = append(pages, page)

		n, _ := strconv.Atoi(page)
		var items []string
		count := 2
		switch {
		case n == 3:
			count = 1
		case n > 3:
			count = 0
		}
		for i := 0; i < count; i++ {
			items = append(items, fmt.Sprintf(`{"date":"2024-01-%02d","amount":"-%d.50","payee":"P%d","category_id":%d}`, n*2+i, n, i, n))
		}
		_, _ = fmt.Fprintf(w, `{"transactions":[%s]}`, join(items))
	}), WithPageSize(2))

	window := batch.DateRange{Start: day(2024, 1, 1), End: day(2024, 1, 31)}
	txs, err := c.FetchTransactions(context.Background(), window, "acc 1")
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "2", "3", "4"}, pages)
	require.Len(t, txs, 5)
	assert.Equal(t, "2024-01-02", txs[0].DateString())
	assert.True(t, decimal.RequireFromString("-1.50").Equal(txs[0].Amount))
	assert.Equal(t, int64(3), txs[4].CategoryID)
}

func TestFetchTransactions_ServerCapsPageSize(t *testing.T) {
	var requests int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		assert.Equal(t, strconv.Itoa(DefaultPageSize), r.URL.Query().Get("per_page"))
		n, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if n > 3 {
			_, _ = w.Write([]byte(`{"transactions":[]}`))
			return
		}
		_, _ = fmt.Fprintf(w, `{"transactions":[{"date":"2024-02-%02d","amount":"1","payee":"A"},{"date":"2024-02-%02d","amount":"2","payee":"B"}]}`, n, n+10)
	}))

	txs, err := c.FetchTransactions(context.Background(), batch.DateRange{}, "a")
	require.NoError(t, err)
	assert.Len(t, txs, 6)
	assert.Equal(t, int32(4), atomic.LoadInt32(&requests))
}

func TestFetchTransactions_EmptyFirstPage(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"transactions":[]}`))
	}))
	txs, err := c.FetchTransactions(context.Background(), batch.DateRange{}, "a")
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestInsertTransactions(t *testing.T) {
	var got insertRequest
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/accounts/acc/transactions", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))

	txs := []models.Transaction{
		{Date: day(2024, 1, 2), Amount: decimal.RequireFromString("-4.504"), Payee: "STARBUCKS", CategoryID: 3},
		{Date: day(2024, 1, 3), Amount: decimal.NewFromInt(100), Payee: "Salary", Reference: "ref"},
	}
	require.NoError(t, c.InsertTransactions(context.Background(), "acc", txs))

	require.Len(t, got.Transactions, 2)
	assert.Equal(t, "2024-01-02", got.Transactions[0].Date)
	assert.Equal(t, "-4.5", got.Transactions[0].Amount.String())
	require.NotNil(t, got.Transactions[0].CategoryID)
	assert.Equal(t, int64(3), *got.Transactions[0].CategoryID)
	assert.Nil(t, got.Transactions[1].CategoryID)
	assert.Equal(t, "ref", got.Transactions[1].Reference)
}

func TestInsertTransactions_SingleAttempt(t *testing.T) {
	var posts int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&posts, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	err := c.InsertTransactions(context.Background(), "acc", []models.Transaction{{Date: day(2024, 1, 2), Amount: decimal.NewFromInt(1), Payee: "x"}})
	var fe *syncerror.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, http.StatusServiceUnavailable, fe.StatusCode)
	assert.True(t, syncerror.IsRetryable(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&posts))
}

func TestInsertTransactions_RejectsOversizedBatch(t *testing.T) {
	c := NewClient("http://unused", "", nil)
	err := c.InsertTransactions(context.Background(), "a", make([]models.Transaction, batch.MaxSize+1))
	assert.Error(t, err)
}

func TestErrors_RetryAndClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantCalls int32
	}{
		{"server error retried", http.StatusBadGateway, 3},
		{"rate limit retried", http.StatusTooManyRequests, 3},
		{"client error not retried", http.StatusUnprocessableEntity, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				http.Error(w, "nope", tt.status)
			}))

			_, err := c.ListCategories(context.Background())
			var fe *syncerror.FetchError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.status, fe.StatusCode)
			assert.Equal(t, "nope", fe.Err.Error())
			assert.Equal(t, tt.wantCalls, atomic.LoadInt32(&calls))
		})
	}
}

func TestErrors_RecoversAfterTransientFailure(t *testing.T) {
	var calls int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"categories":[]}`))
	}))

	cats, err := c.ListCategories(context.Background())
	require.NoError(t, err)
	assert.Empty(t, cats)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestErrors_NetworkFailureIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(url, "", nil, WithRetry(noWait(2)))
	_, err := c.ListCategories(context.Background())
	var fe *syncerror.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, 0, fe.StatusCode)
	assert.True(t, syncerror.IsRetryable(err))
}

func TestErrors_BadPayload(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"transactions":[{"date":"01/02/2024","amount":"1","payee":"x"}]}`))
	}))
	_, err := c.FetchTransactions(context.Background(), batch.DateRange{}, "a")
	var fe *syncerror.FetchError
	require.ErrorAs(t, err, &fe)
	assert.False(t, syncerror.IsRetryable(err))
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func join(items []string) string {
	out := ""
	for i, s := range items {
		if i > 0 {
			out += ","
		}
		out += s
	}
	return out
}
