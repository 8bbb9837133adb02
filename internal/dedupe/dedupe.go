// Package dedupe decides which source movements already exist in the budgeting
// service. Two identities are used: a content fingerprint over date, amount,
// payee and reference, and a coarser simple key over date and amount only.
package dedupe

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"fjacquet/budget-sync/internal/models"
)

// Match methods reported for duplicates.
const (
	MethodFingerprint = "fingerprint"
	MethodSimpleKey   = "simple_key"
)

// Duplicate is a skipped candidate and the identity that matched.
type Duplicate struct {
	Transaction models.Transaction `json:"transaction"`
	Method      string             `json:"method"`
}

// Result partitions the candidates, both lists in source order.
type Result struct {
	New        []models.Transaction
	Duplicates []Duplicate
}

// Fingerprint returns the hex sha256 of "date|amount|payee|reference", the
// amount rendered with two decimals.
func Fingerprint(tx models.Transaction) string {
	raw := strings.Join([]string{tx.DateString(), tx.AmountString(), tx.Payee, tx.Reference}, "|")
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// SimpleKey returns "date-amount" with the amount rounded to two decimals.
func SimpleKey(tx models.Transaction) string {
	return tx.DateString() + "-" + tx.AmountString()
}

// Index holds the identities already known to the target.
type Index struct {
	keys         map[string]struct{}
	fingerprints map[string]struct{}
}

// NewIndex builds an Index over existing.
func NewIndex(existing []models.Transaction) *Index {
	idx := &Index{
		keys:         make(map[string]struct{}, len(existing)),
		fingerprints: make(map[string]struct{}, len(existing)),
	}
	for _, tx := range existing {
		idx.Add(tx)
	}
	return idx
}

// Add records the identities of tx.
func (i *Index) Add(tx models.Transaction) {
	i.keys[SimpleKey(tx)] = struct{}{}
	i.fingerprints[Fingerprint(tx)] = struct{}{}
}

// Lookup returns the method by which tx is already known, fingerprint first.
func (i *Index) Lookup(tx models.Transaction) (string, bool) {
	if _, ok := i.fingerprints[Fingerprint(tx)]; ok {
		return MethodFingerprint, true
	}
	if _, ok := i.keys[SimpleKey(tx)]; ok {
		return MethodSimpleKey, true
	}
	return "", false
}

// Deduplicate splits candidates into new and duplicate transactions. Every new
// candidate is added to the index right away, so repeats inside candidates are
// duplicates of their first occurrence.
func Deduplicate(existing, candidates []models.Transaction) Result {
	idx := NewIndex(existing)
	res := Result{
		New:        make([]models.Transaction, 0, len(candidates)),
		Duplicates: []Duplicate{},
	}

	for _, tx := range candidates {
		if method, dup := idx.Lookup(tx); dup {
			res.Duplicates = append(res.Duplicates, Duplicate{Transaction: tx, Method: method})
			continue
		}
		res.New = append(res.New, tx)
		idx.Add(tx)
	}
	return res
}
