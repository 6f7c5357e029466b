// Package ranking holds the single ordering definition shared by the vote summary,
// the leaderboard cache and reward publication.
package ranking

import "sort"

// Criteria is the number of scored criteria per vote.
const Criteria = 4

// Stats are the raw per-submission aggregates: criterion sums and vote count.
type Stats struct {
	SubmissionID uint
	OwnerID      uint
	Sums         [Criteria]int64
	Count        int64
}

// Entry is a ranked submission with derived averages.
type Entry struct {
	Rank         int
	SubmissionID uint
	OwnerID      uint
	Count        int64
	Averages     [Criteria]float64
	Composite    float64
}

// Compute drops empty aggregates, derives averages and returns entries in canonical order:
// composite desc, vote count desc, submission id asc. Ranks are 1-based positions.
func Compute(stats []Stats) []Entry {
	entries := make([]Entry, 0, len(stats))
	for _, s := range stats {
		if s.Count <= 0 {
			continue
		}
		entries = append(entries, newEntry(s))
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return Less(entries[i], entries[j])
	})

	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

// Less reports whether a ranks ahead of b.
func Less(a, b Entry) bool {
	if a.Composite != b.Composite {
		return a.Composite > b.Composite
	}
	if a.Count != b.Count {
		return a.Count > b.Count
	}
	return a.SubmissionID < b.SubmissionID
}

func newEntry(s Stats) Entry {
	entry := Entry{SubmissionID: s.SubmissionID, OwnerID: s.OwnerID, Count: s.Count}
	var total float64
	for i := 0; i < Criteria; i++ {
		entry.Averages[i] = float64(s.Sums[i]) / float64(s.Count)
		total += entry.Averages[i]
	}
	entry.Composite = total / Criteria
	return entry
}

// ByOwner keeps the first (best ranked) entry for each owner, preserving order.
func ByOwner(entries []Entry) []Entry {
	seen := make(map[uint]struct{}, len(entries))
	result := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if _, ok := seen[e.OwnerID]; ok {
			continue
		}
		seen[e.OwnerID] = struct{}{}
		result = append(result, e)
	}
	return result
}
