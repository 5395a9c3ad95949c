package domain

import (
	"strings"
	"time"
)

// DefaultTimelineCap is the number of most recent timeline events retained in SharedState.
const DefaultTimelineCap = 100

// UserState is private, per (deployment, user) state. It is never broadcast.
type UserState map[string]any

// Clone returns a deep copy of the user state.
func (s UserState) Clone() UserState {
	if s == nil {
		return UserState{}
	}
	return UserState(CloneMap(s))
}

// Merge copies every key of partial into s, overwriting existing keys.
func (s UserState) Merge(partial map[string]any) {
	for k, v := range partial {
		s[k] = CloneValue(v)
	}
}

// EntitySummary is one entry of a shared collection.
// Entries carried by realtime pushes only hold an ID; entries loaded from the
// authoritative store carry Detail.
type EntitySummary struct {
	ID     string         `json:"id"`
	Name   string         `json:"name,omitempty"`
	Detail map[string]any `json:"detail,omitempty"`
}

// IsSummaryOnly reports whether the entry lacks entity detail.
func (e EntitySummary) IsSummaryOnly() bool {
	return e.Name == "" && len(e.Detail) == 0
}

// TimelineEvent is one entry of the shared activity timeline.
type TimelineEvent struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	ElementID string         `json:"elementId,omitempty"`
	UserID    string         `json:"userId,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// SharedState is visible to every participant of a deployment.
// It is mutated only by the execution boundary.
type SharedState struct {
	Counters     map[string]float64         `json:"counters"`
	Collections  map[string][]EntitySummary `json:"collections"`
	Timeline     []TimelineEvent            `json:"timeline"`
	Computed     map[string]any             `json:"computed"`
	Version      int64                      `json:"version"`
	LastModified time.Time                  `json:"lastModified"`
}

// NewSharedState returns an empty, initialized SharedState.
func NewSharedState() SharedState {
	return SharedState{
		Counters:    make(map[string]float64),
		Collections: make(map[string][]EntitySummary),
		Timeline:    []TimelineEvent{},
		Computed:    make(map[string]any),
	}
}

// Clone returns a deep copy of the shared state.
func (s SharedState) Clone() SharedState {
	out := NewSharedState()
	for k, v := range s.Counters {
		out.Counters[k] = v
	}
	for k, items := range s.Collections {
		cp := make([]EntitySummary, len(items))
		for i, it := range items {
			it.Detail = CloneMap(it.Detail)
			cp[i] = it
		}
		out.Collections[k] = cp
	}
	for _, ev := range s.Timeline {
		ev.Data = CloneMap(ev.Data)
		out.Timeline = append(out.Timeline, ev)
	}
	out.Computed = CloneMap(s.Computed)
	if out.Computed == nil {
		out.Computed = make(map[string]any)
	}
	out.Version = s.Version
	out.LastModified = s.LastModified
	return out
}

// Counter returns the value of a counter, accepting either key convention ("a:b" or "a_b").
func (s SharedState) Counter(key string) (float64, bool) {
	if v, ok := s.Counters[key]; ok {
		return v, true
	}
	alt := strings.ReplaceAll(key, ":", "_")
	if alt == key {
		alt = strings.Replace(key, "_", ":", 1)
	}
	v, ok := s.Counters[alt]
	return v, ok
}

// AppendTimeline appends ev and keeps only the most recent limit entries.
func (s *SharedState) AppendTimeline(ev TimelineEvent, limit int) {
	s.Timeline = append(s.Timeline, ev)
	if limit > 0 && len(s.Timeline) > limit {
		s.Timeline = append([]TimelineEvent(nil), s.Timeline[len(s.Timeline)-limit:]...)
	}
}

// ToolState is the full state of a deployment as seen by one user.
type ToolState struct {
	UserState   UserState   `json:"userState"`
	SharedState SharedState `json:"sharedState"`
}

// CloneMap deep-copies a JSON-like map.
func CloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = CloneValue(v)
	}
	return out
}

// CloneValue deep-copies JSON-like values (maps and slices); scalars are returned as is.
func CloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneMap(t)
	case UserState:
		return CloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = CloneValue(item)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}
