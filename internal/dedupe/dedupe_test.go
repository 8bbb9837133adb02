package dedupe

import (
	"testing"
	"time"

	"fjacquet/budget-sync/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tx(date, amount, payee, ref string) models.Transaction {
	d, err := models.ParseDate(date)
	if err != nil {
		panic(err)
	}
	return models.Transaction{Date: d, Amount: decimal.RequireFromString(amount), Payee: payee, Reference: ref}
}

func TestFingerprint_Deterministic(t *testing.T) {
	a := tx("2024-01-01", "10.00", "A", "r1")
	assert.Equal(t, Fingerprint(a), Fingerprint(a))
	assert.Len(t, Fingerprint(a), 64)
}

func TestFingerprint_ScaleInsensitive(t *testing.T) {
	assert.Equal(t, Fingerprint(tx("2024-01-01", "10", "A", "")), Fingerprint(tx("2024-01-01", "10.00", "A", "")))
}

func TestFingerprint_EveryFieldMatters(t *testing.T) {
	base := tx("2024-01-01", "10.00", "A", "r1")
	variants := []models.Transaction{
		tx("2024-01-02", "10.00", "A", "r1"),
		tx("2024-01-01", "10.01", "A", "r1"),
		tx("2024-01-01", "-10.00", "A", "r1"),
		tx("2024-01-01", "10.00", "B", "r1"),
		tx("2024-01-01", "10.00", "a", "r1"),
		tx("2024-01-01", "10.00", "A", "r2"),
		tx("2024-01-01", "10.00", "A", ""),
	}

	seen := map[string]bool{Fingerprint(base): true}
	for _, v := range variants {
		fp := Fingerprint(v)
		assert.False(t, seen[fp], "collision for %s", v)
		seen[fp] = true
	}
}

func TestSimpleKey(t *testing.T) {
	assert.Equal(t, "2024-01-01-10.00", SimpleKey(tx("2024-01-01", "10", "X", "")))
	assert.Equal(t, "2024-01-01--3.46", SimpleKey(tx("2024-01-01", "-3.456", "X", "")))
}

func TestDeduplicate_SimpleKeyIgnoresPayee(t *testing.T) {
	existing := []models.Transaction{{Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Amount: decimal.NewFromInt(10)}}
	candidates := []models.Transaction{tx("2024-01-01", "10.00", "X", "")}

	res := Deduplicate(existing, candidates)
	assert.Empty(t, res.New)
	require.Len(t, res.Duplicates, 1)
	assert.Equal(t, MethodSimpleKey, res.Duplicates[0].Method)
}

func TestDeduplicate_FingerprintReportedFirst(t *testing.T) {
	existing := []models.Transaction{tx("2024-01-01", "10.00", "A", "r1")}
	res := Deduplicate(existing, []models.Transaction{tx("2024-01-01", "10.00", "A", "r1")})

	require.Len(t, res.Duplicates, 1)
	assert.Equal(t, MethodFingerprint, res.Duplicates[0].Method)
}

func TestDeduplicate_WithinBatch(t *testing.T) {
	b := tx("2024-01-01", "10.00", "B", "")

	t.Run("against existing of same day and amount", func(t *testing.T) {
		existing := []models.Transaction{tx("2024-01-01", "10.00", "A", "r1")}
		res := Deduplicate(existing, []models.Transaction{b, b})

		assert.Empty(t, res.New)
		require.Len(t, res.Duplicates, 2)
		assert.Equal(t, MethodSimpleKey, res.Duplicates[0].Method)
		assert.Equal(t, MethodSimpleKey, res.Duplicates[1].Method)
	})

	t.Run("second occurrence caught by the first", func(t *testing.T) {
		res := Deduplicate(nil, []models.Transaction{b, tx("2024-01-02", "5.00", "C", ""), b})

		require.Len(t, res.New, 2)
		assert.Equal(t, "B", res.New[0].Payee)
		assert.Equal(t, "C", res.New[1].Payee)
		require.Len(t, res.Duplicates, 1)
		assert.Equal(t, MethodFingerprint, res.Duplicates[0].Method)
	})
}

func TestDeduplicate_SameDayDifferentAmounts(t *testing.T) {
	existing := []models.Transaction{tx("2024-01-01", "10.00", "A", "")}
	candidates := []models.Transaction{
		tx("2024-01-01", "11.00", "A", ""),
		tx("2024-01-01", "12.00", "A", ""),
	}

	res := Deduplicate(existing, candidates)
	assert.Len(t, res.New, 2)
	assert.Empty(t, res.Duplicates)
}

func TestDeduplicate_Empty(t *testing.T) {
	res := Deduplicate(nil, nil)
	assert.Empty(t, res.New)
	assert.Empty(t, res.Duplicates)
}
