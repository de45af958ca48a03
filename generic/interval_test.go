package generic_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/lending-engine/generic"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func amountTier(from, to string, rate string) generic.Interval[decimal.Decimal, generic.Amount] {
	return generic.Interval[decimal.Decimal, generic.Amount]{
		From:  dec(from),
		To:    dec(to),
		Value: generic.MustPercent(rate),
	}
}

// =============================================================================
// CONSTRUCTION
// =============================================================================

func TestTierTable_SortsEntries(t *testing.T) {
	// GIVEN: Tiers supplied out of order
	// WHEN: Building the table
	// THEN: Tiers() is ascending by From

	table, err := generic.NewAmountTiers([]generic.Interval[decimal.Decimal, generic.Amount]{
		amountTier("10000", "50000", "10"),
		amountTier("0", "5000", "14"),
		amountTier("5000", "10000", "12"),
	})
	require.NoError(t, err)

	tiers := table.Tiers()
	require.Len(t, tiers, 3)
	assert.True(t, tiers[0].From.Equal(dec("0")))
	assert.True(t, tiers[1].From.Equal(dec("5000")))
	assert.True(t, tiers[2].From.Equal(dec("10000")))
	assert.Equal(t, generic.KeyAmount, table.Kind())
	assert.Equal(t, 3, table.Len())
}

func TestTierTable_OverlapRejected(t *testing.T) {
	// GIVEN: [0,100) and [50,150)
	// WHEN: Building the table
	// THEN: OverlapError names both entries

	_, err := generic.NewAmountTiers([]generic.Interval[decimal.Decimal, generic.Amount]{
		amountTier("0", "100", "1"),
		amountTier("50", "150", "2"),
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, generic.ErrOverlap)

	var overlap *generic.OverlapError
	require.ErrorAs(t, err, &overlap)
	assert.Equal(t, 0, overlap.First.Index)
	assert.Equal(t, "0", overlap.First.From)
	assert.Equal(t, "100", overlap.First.To)
	assert.Equal(t, 1, overlap.Second.Index)
	assert.Equal(t, "50", overlap.Second.From)
	assert.Contains(t, err.Error(), "#0 [0, 100)")
	assert.Contains(t, err.Error(), "#1 [50, 150)")
}

func TestTierTable_NestedOverlapRejected(t *testing.T) {
	_, err := generic.NewAmountTiers([]generic.Interval[decimal.Decimal, generic.Amount]{
		amountTier("0", "1000", "1"),
		amountTier("200", "300", "2"),
	})
	assert.ErrorIs(t, err, generic.ErrOverlap)
}

func TestTierTable_OverlapNamesInputPositions(t *testing.T) {
	// GIVEN: The conflicting entries are given in reverse order
	// THEN: Indices refer to the caller's input, not the sorted order

	_, err := generic.NewAmountTiers([]generic.Interval[decimal.Decimal, generic.Amount]{
		amountTier("500", "900", "1"),
		amountTier("50", "150", "2"),
		amountTier("100", "600", "3"),
	})

	var overlap *generic.OverlapError
	require.ErrorAs(t, err, &overlap)
	assert.Equal(t, 1, overlap.First.Index)
	assert.Equal(t, 2, overlap.Second.Index)
}

func TestTierTable_InvalidRangeRejected(t *testing.T) {
	tests := []struct {
		name     string
		from, to string
	}{
		{"from equals to", "100", "100"},
		{"from above to", "200", "100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := generic.NewAmountTiers([]generic.Interval[decimal.Decimal, generic.Amount]{
				amountTier("0", "50", "1"),
				amountTier(tt.from, tt.to, "2"),
			})

			require.Error(t, err)
			assert.ErrorIs(t, err, generic.ErrInvalidRange)
			var invalid *generic.InvalidRangeError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, 1, invalid.Entry.Index)
		})
	}
}

func TestTierTable_AdjacentTiersAreNotOverlapping(t *testing.T) {
	_, err := generic.NewAmountTiers([]generic.Interval[decimal.Decimal, generic.Amount]{
		amountTier("0", "100", "1"),
		amountTier("100", "200", "2"),
	})
	assert.NoError(t, err)
}

func TestTierTable_EmptyTable(t *testing.T) {
	table, err := generic.NewYearTiers([]generic.Interval[int, generic.Amount]{})
	require.NoError(t, err)

	_, err = table.Lookup(1)
	assert.ErrorIs(t, err, generic.ErrNoMatchingTier)
}

// =============================================================================
// LOOKUP
// =============================================================================

func TestTierTable_BoundaryBelongsToUpperTier(t *testing.T) {
	// GIVEN: [0,100) -> r1, [100,200) -> r2
	// WHEN: Looking up exactly 100
	// THEN: r2; 99.99 still resolves to r1

	table, err := generic.NewAmountTiers([]generic.Interval[decimal.Decimal, generic.Amount]{
		amountTier("0", "100", "1"),
		amountTier("100", "200", "2"),
	})
	require.NoError(t, err)

	got, err := table.Lookup(dec("100"))
	require.NoError(t, err)
	assert.True(t, got.Equal(generic.MustPercent("2")))

	got, err = table.Lookup(dec("99.99"))
	require.NoError(t, err)
	assert.True(t, got.Equal(generic.MustPercent("1")))

	got, err = table.Lookup(dec("0"))
	require.NoError(t, err)
	assert.True(t, got.Equal(generic.MustPercent("1")))
}

func TestTierTable_GapAndOutOfRange(t *testing.T) {
	// GIVEN: [0,100) and [200,300) with a gap between them
	table, err := generic.NewAmountTiers([]generic.Interval[decimal.Decimal, generic.Amount]{
		amountTier("0", "100", "1"),
		amountTier("200", "300", "2"),
	})
	require.NoError(t, err)

	for _, key := range []string{"-1", "100", "150", "199.99", "300", "1000000"} {
		t.Run(key, func(t *testing.T) {
			_, err := table.Lookup(dec(key))
			require.Error(t, err)
			assert.ErrorIs(t, err, generic.ErrNoMatchingTier)
			assert.False(t, table.Covers(dec(key)))

			var miss *generic.NoMatchingTierError
			require.ErrorAs(t, err, &miss)
			assert.Equal(t, key, miss.Key)
		})
	}
}

func TestTierTable_EveryKeyFindsTheUniqueContainingTier(t *testing.T) {
	// GIVEN: Ten contiguous tiers of width 100
	// WHEN: Looking up each key from 0 to 999 in steps of 7
	// THEN: The tier found is the only one containing the key

	var entries []generic.Interval[int, int]
	for i := 9; i >= 0; i-- {
		entries = append(entries, generic.Interval[int, int]{From: i * 100, To: (i + 1) * 100, Value: i})
	}
	table, err := generic.NewYearTiers(entries)
	require.NoError(t, err)

	for key := 0; key < 1000; key += 7 {
		got, err := table.Lookup(key)
		require.NoError(t, err)
		assert.Equal(t, key/100, got, "key %d", key)
	}
}

func TestTierTable_DateKeys(t *testing.T) {
	// GIVEN: A rate change on 2025-07-01
	table, err := generic.NewDateTiers([]generic.Interval[generic.TimePoint, generic.Amount]{
		{From: generic.NewTimePoint(2025, time.January, 1), To: generic.NewTimePoint(2025, time.July, 1), Value: generic.MustPercent("11")},
		{From: generic.NewTimePoint(2025, time.July, 1), To: generic.NewTimePoint(2026, time.January, 1), Value: generic.MustPercent("12.5")},
	})
	require.NoError(t, err)

	june30, err := table.Lookup(generic.NewTimePoint(2025, time.June, 30))
	require.NoError(t, err)
	assert.Equal(t, "11.0000%", june30.String())

	july1, err := table.Lookup(generic.NewTimePoint(2025, time.July, 1))
	require.NoError(t, err)
	assert.Equal(t, "12.5000%", july1.String())

	_, err = table.Lookup(generic.NewTimePoint(2026, time.January, 1))
	assert.ErrorIs(t, err, generic.ErrNoMatchingTier)
}

func TestTierTable_TiersReturnsCopy(t *testing.T) {
	table, err := generic.NewYearTiers([]generic.Interval[int, string]{
		{From: 1, To: 3, Value: "early"},
		{From: 3, To: 6, Value: "late"},
	})
	require.NoError(t, err)

	tiers := table.Tiers()
	tiers[0].Value = "mutated"

	got, err := table.Lookup(1)
	require.NoError(t, err)
	assert.Equal(t, "early", got)
}

func TestTierTable_LookupInterval(t *testing.T) {
	table, err := generic.NewYearTiers([]generic.Interval[int, string]{
		{From: 1, To: 3, Value: "early"},
		{From: 3, To: 6, Value: "late"},
	})
	require.NoError(t, err)

	iv, err := table.LookupInterval(4)
	require.NoError(t, err)
	assert.Equal(t, 3, iv.From)
	assert.Equal(t, 6, iv.To)
	assert.Equal(t, "late", iv.Value)
}
