package domain

// CollectionSummary is the realtime form of a shared collection: a count and
// the ids of its most recent entries, never the entity detail.
type CollectionSummary struct {
	Count     int      `json:"count"`
	RecentIDs []string `json:"recentIds,omitempty"`
}

// recentSummaryLimit bounds RecentIDs in pushed summaries.
const recentSummaryLimit = 10

// SharedStateDelta is one realtime push for a deployment.
// It is designed to be serialized to JSON and merged on the client.
type SharedStateDelta struct {
	DeploymentID DeploymentID                 `json:"deploymentId"`
	Version      int64                        `json:"version"`
	Counters     map[string]float64           `json:"counters,omitempty"`
	Collections  map[string]CollectionSummary `json:"collections,omitempty"`
	Timeline     []TimelineEvent              `json:"timeline,omitempty"`

	// Snapshot marks a full summary rather than a change set.
	Snapshot bool `json:"snapshot,omitempty"`
}

// IsEmpty reports whether the delta carries no changes.
func (d *SharedStateDelta) IsEmpty() bool {
	return len(d.Counters) == 0 && len(d.Collections) == 0 && len(d.Timeline) == 0
}

// DiffShared computes the realtime delta between two versions of a shared state.
// If oldState is nil the delta is a snapshot of newState.
// It returns nil when nothing observable changed.
func DiffShared(id DeploymentID, oldState, newState *SharedState) *SharedStateDelta {
	if newState == nil {
		return nil
	}

	delta := &SharedStateDelta{
		DeploymentID: id,
		Version:      newState.Version,
		Snapshot:     oldState == nil,
	}

	delta.Counters = diffCounters(oldState, newState)
	delta.Collections = diffCollections(oldState, newState)
	delta.Timeline = diffTimeline(oldState, newState)

	if delta.IsEmpty() && !delta.Snapshot {
		return nil
	}
	return delta
}

func diffCounters(old, new *SharedState) map[string]float64 {
	out := make(map[string]float64)
	for k, v := range new.Counters {
		if old == nil {
			out[k] = v
			continue
		}
		if prev, ok := old.Counters[k]; !ok || prev != v {
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func diffCollections(old, new *SharedState) map[string]CollectionSummary {
	out := make(map[string]CollectionSummary)
	for k, items := range new.Collections {
		if old != nil && sameIDs(old.Collections[k], items) {
			continue
		}
		out[k] = Summarize(items)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// diffTimeline assumes the timeline is append-only (oldest entries may be trimmed).
func diffTimeline(old, new *SharedState) []TimelineEvent {
	if len(new.Timeline) == 0 {
		return nil
	}
	if old == nil {
		return append([]TimelineEvent(nil), new.Timeline...)
	}
	seen := make(map[string]struct{}, len(old.Timeline))
	for _, ev := range old.Timeline {
		seen[ev.ID] = struct{}{}
	}
	var appended []TimelineEvent
	for _, ev := range new.Timeline {
		if _, ok := seen[ev.ID]; !ok {
			appended = append(appended, ev)
		}
	}
	return appended
}

// Summarize reduces a collection to its realtime summary.
func Summarize(items []EntitySummary) CollectionSummary {
	s := CollectionSummary{Count: len(items)}
	start := 0
	if len(items) > recentSummaryLimit {
		start = len(items) - recentSummaryLimit
	}
	for _, it := range items[start:] {
		s.RecentIDs = append(s.RecentIDs, it.ID)
	}
	return s
}

func sameIDs(a, b []EntitySummary) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			return false
		}
	}
	return true
}
