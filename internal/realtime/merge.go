package realtime

import (
	"sort"

	"github.com/campushive/hivelab/pkg/domain"
)

// CountKey is the computed entry holding the pushed size of a collection.
func CountKey(collection string) string { return collection + ":count" }

// Merge folds a pushed delta into the current shared state and returns the
// result; current is not modified. The rule:
//
//   - counters are last-write-wins per key and are written under both key
//     spellings, even when the push is older than what is held;
//   - collection summaries only add placeholder entries for unknown recent
//     ids and record the pushed count, entity detail is never replaced;
//   - timeline entries are appended, de-duplicated by id, ordered by
//     timestamp and trimmed to the most recent limit entries;
//   - the version never regresses.
func Merge(current domain.SharedState, delta *domain.SharedStateDelta, limit int) domain.SharedState {
	out := current.Clone()
	if delta == nil {
		return out
	}
	if limit <= 0 {
		limit = domain.DefaultTimelineCap
	}

	for k, v := range delta.Counters {
		for _, key := range Keys(k) {
			out.Counters[key] = v
		}
	}

	for key, summary := range delta.Collections {
		items := out.Collections[key]
		known := make(map[string]bool, len(items))
		for _, it := range items {
			known[it.ID] = true
		}
		for _, id := range summary.RecentIDs {
			if !known[id] {
				known[id] = true
				items = append(items, domain.EntitySummary{ID: id})
			}
		}
		out.Collections[key] = items
		out.Computed[CountKey(key)] = summary.Count
	}

	if len(delta.Timeline) > 0 {
		out.Timeline = mergeTimeline(out.Timeline, delta.Timeline, limit)
		if last := out.Timeline[len(out.Timeline)-1].Timestamp; last.After(out.LastModified) {
			out.LastModified = last
		}
	}

	if delta.Version > out.Version {
		out.Version = delta.Version
	}
	return out
}

func mergeTimeline(held, pushed []domain.TimelineEvent, limit int) []domain.TimelineEvent {
	seen := make(map[string]bool, len(held)+len(pushed))
	merged := make([]domain.TimelineEvent, 0, len(held)+len(pushed))
	for _, list := range [][]domain.TimelineEvent{held, pushed} {
		for _, ev := range list {
			if ev.ID != "" && seen[ev.ID] {
				continue
			}
			seen[ev.ID] = true
			merged = append(merged, ev)
		}
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp.Before(merged[j].Timestamp)
	})
	if len(merged) > limit {
		merged = merged[len(merged)-limit:]
	}
	return merged
}
