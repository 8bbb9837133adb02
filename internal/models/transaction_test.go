package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransaction_Formatting(t *testing.T) {
	tx := Transaction{
		Date:   time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
		Amount: decimal.RequireFromString("-10.5"),
		Payee:  "ACME",
	}

	assert.Equal(t, "2024-01-05", tx.DateString())
	assert.Equal(t, "-10.50", tx.AmountString())
	assert.True(t, tx.IsExpense())
	assert.Equal(t, `2024-01-05 -10.50 "ACME"`, tx.String())
}

func TestTransaction_ZeroDate(t *testing.T) {
	assert.Equal(t, "", Transaction{}.DateString())
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), d)

	_, err = ParseDate("29.02.2024")
	assert.Error(t, err)
}

func TestTruncateToDate(t *testing.T) {
	in := time.Date(2024, 3, 10, 23, 59, 1, 5, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), TruncateToDate(in))
}

func TestTransaction_JSON(t *testing.T) {
	tx := Transaction{
		Date:      time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
		Amount:    decimal.RequireFromString("-10.5"),
		Payee:     "ACME",
		Reference: "r1",
	}

	data, err := json.Marshal(tx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"date":"2024-01-05","amount":"-10.5","payee":"ACME","reference":"r1"}`, string(data))

	var back Transaction
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, tx.Date.Equal(back.Date))
	assert.True(t, tx.Amount.Equal(back.Amount))
	assert.Equal(t, tx.Payee, back.Payee)

	assert.Error(t, json.Unmarshal([]byte(`{"date":"05.01.2024"}`), &back))
}
