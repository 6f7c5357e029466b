package ranking

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComputeOrdersByCompositeThenCountThenID(t *testing.T) {
	stats := []Stats{
		{SubmissionID: 30, OwnerID: 3, Sums: [Criteria]int64{8, 8, 8, 8}, Count: 2}, // C: 4.0 with 2 votes
		{SubmissionID: 20, OwnerID: 2, Sums: [Criteria]int64{12, 12, 12, 12}, Count: 3},
		{SubmissionID: 10, OwnerID: 1, Sums: [Criteria]int64{18, 18, 18, 18}, Count: 4}, // A: 4.5
		{SubmissionID: 5, OwnerID: 4, Sums: [Criteria]int64{8, 8, 8, 8}, Count: 2},
	}

	entries := Compute(stats)
	require.Len(t, entries, 4)

	require.Equal(t, uint(10), entries[0].SubmissionID)
	require.Equal(t, uint(20), entries[1].SubmissionID)
	require.Equal(t, uint(5), entries[2].SubmissionID)
	require.Equal(t, uint(30), entries[3].SubmissionID)
	for i, e := range entries {
		require.Equal(t, i+1, e.Rank)
	}
	require.InDelta(t, 4.5, entries[0].Composite, 1e-9)
}

func TestComputeExampleOrdering(t *testing.T) {
	entries := Compute([]Stats{
		{SubmissionID: 3, Sums: [Criteria]int64{8, 8, 8, 8}, Count: 2},
		{SubmissionID: 2, Sums: [Criteria]int64{12, 12, 12, 12}, Count: 3},
		{SubmissionID: 1, Sums: [Criteria]int64{9, 9, 9, 9}, Count: 2},
	})

	ids := []uint{entries[0].SubmissionID, entries[1].SubmissionID, entries[2].SubmissionID}
	require.Equal(t, []uint{1, 2, 3}, ids)
}

func TestComputeSkipsEmptyAggregates(t *testing.T) {
	entries := Compute([]Stats{{SubmissionID: 1}, {SubmissionID: 2, Sums: [Criteria]int64{1, 2, 3, 4}, Count: 1}})
	require.Len(t, entries, 1)
	require.Equal(t, [Criteria]float64{1, 2, 3, 4}, entries[0].Averages)
	require.InDelta(t, 2.5, entries[0].Composite, 1e-9)
}

func TestByOwnerKeepsBestEntry(t *testing.T) {
	entries := []Entry{{SubmissionID: 1, OwnerID: 7}, {SubmissionID: 2, OwnerID: 8}, {SubmissionID: 3, OwnerID: 7}}
	grouped := ByOwner(entries)
	require.Len(t, grouped, 2)
	require.Equal(t, uint(1), grouped[0].SubmissionID)
	require.Equal(t, uint(2), grouped[1].SubmissionID)
}
