/*
interval.go - Validated, immutable tier tables

PURPOSE:
  A tier table maps disjoint half-open key ranges to values. Loan products
  use them to price by principal amount ("5,000 to 10,000 pays 12%"), by
  application date, or by the year of the loan term. Deposit products use
  the same tables for their rates.

KEY CONCEPTS:
  Interval:  One entry, covering [From, To). From is included, To is not.
  TierTable: The validated, sorted set of entries. Built once, read many.
  KeyKind:   Which projection of a loan the table is keyed by.

BOUNDARY RULE:
  Every table, whatever its key type, is closed on From and open on To.
  With tiers [0, 100) -> r1 and [100, 200) -> r2, the key 100 resolves to r2.
  Adjacent tiers therefore share a bound without overlapping.

VALIDATION (at construction, never at lookup):
  - From >= To                -> *InvalidRangeError
  - Two entries share a key   -> *OverlapError naming both
  Entries are sorted by From; the caller's order does not matter. Error
  messages refer to entries by their position in the caller's input.

LOOKUP:
  Binary search for the last entry whose From <= key, then check key < To.
  A key in a gap, or outside all entries, is *NoMatchingTierError. There is
  no implicit default tier.

CONCURRENCY:
  A TierTable has no mutating methods. Tiers() returns a copy. Replacing
  a product's tiers means building a new table and swapping the reference.

SEE ALSO:
  - pricing/charges.go: Charges matrix rows are a TierTable over amounts
  - pricing/resolver.go: Rate references wrap TierTables
*/
package generic

import (
	"cmp"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// KeyKind names the projection a table is keyed by.
type KeyKind string

const (
	KeyAmount KeyKind = "amount"
	KeyDate   KeyKind = "date"
	KeyYear   KeyKind = "term_year"
)

// Interval is one tier entry covering [From, To).
type Interval[K any, V any] struct {
	From  K
	To    K
	Value V
}

// TierTable is an immutable, sorted, non-overlapping set of intervals.
type TierTable[K any, V any] struct {
	kind  KeyKind
	cmp   func(a, b K) int
	tiers []Interval[K, V]
}

// BuildTierTable validates entries and returns the table sorted by From.
// cmp must return a negative number when a < b, zero when equal, and a
// positive number when a > b.
func BuildTierTable[K any, V any](kind KeyKind, cmp func(a, b K) int, entries []Interval[K, V]) (*TierTable[K, V], error) {
	type indexed struct {
		idx int
		iv  Interval[K, V]
	}

	sorted := make([]indexed, len(entries))
	for i, e := range entries {
		if cmp(e.From, e.To) >= 0 {
			return nil, &InvalidRangeError{Kind: kind, Entry: tierRef(i, e)}
		}
		sorted[i] = indexed{idx: i, iv: e}
	}

	sort.SliceStable(sorted, func(a, b int) bool {
		return cmp(sorted[a].iv.From, sorted[b].iv.From) < 0
	})

	// Sorted by From, so any overlap shows up between neighbours.
	for i := 1; i < len(sorted); i++ {
		prev, cur := sorted[i-1], sorted[i]
		if cmp(cur.iv.From, prev.iv.To) < 0 {
			return nil, &OverlapError{
				Kind:   kind,
				First:  tierRef(prev.idx, prev.iv),
				Second: tierRef(cur.idx, cur.iv),
			}
		}
	}

	tiers := make([]Interval[K, V], len(sorted))
	for i, s := range sorted {
		tiers[i] = s.iv
	}
	return &TierTable[K, V]{kind: kind, cmp: cmp, tiers: tiers}, nil
}

func tierRef[K any, V any](idx int, iv Interval[K, V]) TierRef {
	return TierRef{Index: idx, From: fmt.Sprint(iv.From), To: fmt.Sprint(iv.To)}
}

// Lookup returns the value of the tier containing key.
func (t *TierTable[K, V]) Lookup(key K) (V, error) {
	i, ok := t.find(key)
	if !ok {
		var zero V
		return zero, &NoMatchingTierError{Kind: t.kind, Key: fmt.Sprint(key)}
	}
	return t.tiers[i].Value, nil
}

// LookupInterval is Lookup returning the whole matching entry.
func (t *TierTable[K, V]) LookupInterval(key K) (Interval[K, V], error) {
	i, ok := t.find(key)
	if !ok {
		return Interval[K, V]{}, &NoMatchingTierError{Kind: t.kind, Key: fmt.Sprint(key)}
	}
	return t.tiers[i], nil
}

func (t *TierTable[K, V]) find(key K) (int, bool) {
	// First tier starting strictly after key; the candidate is the one before it.
	i := sort.Search(len(t.tiers), func(i int) bool {
		return t.cmp(t.tiers[i].From, key) > 0
	})
	if i == 0 {
		return 0, false
	}
	if t.cmp(key, t.tiers[i-1].To) >= 0 {
		return 0, false
	}
	return i - 1, true
}

// Covers reports whether some tier contains key.
func (t *TierTable[K, V]) Covers(key K) bool {
	_, ok := t.find(key)
	return ok
}

func (t *TierTable[K, V]) Kind() KeyKind { return t.kind }
func (t *TierTable[K, V]) Len() int      { return len(t.tiers) }

// Tiers returns a copy of the entries in ascending order.
func (t *TierTable[K, V]) Tiers() []Interval[K, V] {
	out := make([]Interval[K, V], len(t.tiers))
	copy(out, t.tiers)
	return out
}

// =============================================================================
// TYPED BUILDERS
// =============================================================================

// NewAmountTiers builds a table keyed by a decimal amount (usually principal).
func NewAmountTiers[V any](entries []Interval[decimal.Decimal, V]) (*TierTable[decimal.Decimal, V], error) {
	return BuildTierTable(KeyAmount, decimal.Decimal.Cmp, entries)
}

// NewDateTiers builds a table keyed by a calendar date.
func NewDateTiers[V any](entries []Interval[TimePoint, V]) (*TierTable[TimePoint, V], error) {
	return BuildTierTable(KeyDate, TimePoint.Compare, entries)
}

// NewYearTiers builds a table keyed by the year of the loan term (1-based).
func NewYearTiers[V any](entries []Interval[int, V]) (*TierTable[int, V], error) {
	return BuildTierTable(KeyYear, cmp.Compare[int], entries)
}
