package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/campushive/hivelab/pkg/domain"
	"github.com/google/uuid"
)

// DefaultActions returns a registry preloaded with the built-in element behaviors.
func DefaultActions() *ActionRegistry {
	r := NewActionRegistry()

	r.Register(domain.KindPoll, "vote", pollVote)

	r.Register(domain.KindRSVPButton, "rsvp", rsvpJoin)
	r.Register(domain.KindRSVPButton, "cancel_rsvp", rsvpLeave)

	r.Register(domain.KindCounter, "increment", counterStep(1))
	r.Register(domain.KindCounter, "decrement", counterStep(-1))
	r.Register(domain.KindCounter, "reset", counterReset)

	r.Register(domain.KindFormBuilder, "submit", formSubmit)

	r.Register(domain.KindLeaderboard, "update_score", leaderboardScore)

	r.Register(domain.KindTimer, "start", timerStart)
	r.Register(domain.KindTimer, "stop", timerStop)

	r.Register(domain.KindAnnouncement, "acknowledge", acknowledge)

	r.SetFallback(passthrough)
	return r
}

// CounterKey is the shared-state key convention for per-element aggregates.
func CounterKey(elementID string, parts ...string) string {
	return strings.Join(append([]string{elementID}, parts...), ":")
}

func pollVote(_ context.Context, req *ActionRequest) (*ActionResult, error) {
	cfg, _ := req.Config.(domain.PollConfig)
	option, _ := req.Data["option"].(string)
	if option == "" {
		return nil, fmt.Errorf("%w: option is required", ErrInvalidPayload)
	}
	if len(cfg.Options) > 0 && !contains(cfg.Options, option) {
		return nil, fmt.Errorf("%w: %q is not a poll option", ErrInvalidPayload, option)
	}

	el := req.Element.InstanceID
	votedKey := CounterKey(el, "vote")
	previous, _ := req.User[votedKey].(string)

	if previous == option {
		return &ActionResult{Result: map[string]any{"option": option, "changed": false}}, nil
	}
	if previous != "" && !cfg.AllowMultiple {
		// Changing a vote moves it rather than adding a second one.
		req.Shared.Counters[CounterKey(el, previous)]--
		req.Shared.Counters[CounterKey(el, "total")]--
	}
	req.Shared.Counters[CounterKey(el, option)]++
	req.Shared.Counters[CounterKey(el, "total")]++

	results := make(map[string]any, len(cfg.Options))
	for _, opt := range cfg.Options {
		results[opt] = req.Shared.Counters[CounterKey(el, opt)]
	}
	total := req.Shared.Counters[CounterKey(el, "total")]

	return &ActionResult{
		Result:    map[string]any{"option": option, "changed": true},
		UserState: map[string]any{votedKey: option},
		Outputs: map[string]any{
			"results": results,
			"votes":   total,
			"winner":  pollWinner(cfg.Options, req.Shared, el),
		},
	}, nil
}

func pollWinner(options []string, shared *domain.SharedState, el string) string {
	winner, best := "", 0.0
	for _, opt := range options {
		if v := shared.Counters[CounterKey(el, opt)]; v > best {
			winner, best = opt, v
		}
	}
	return winner
}

func rsvpJoin(_ context.Context, req *ActionRequest) (*ActionResult, error) {
	cfg, _ := req.Config.(domain.RSVPConfig)
	el := req.Element.InstanceID
	listKey := CounterKey(el, "attendees")
	attendees := req.Shared.Collections[listKey]

	for _, a := range attendees {
		if a.ID == req.UserID {
			return rsvpResult(req, attendees, true), nil
		}
	}
	if cfg.MaxAttendees > 0 && len(attendees) >= cfg.MaxAttendees {
		return nil, fmt.Errorf("%w: %s is full", ErrRejected, cfg.EventName)
	}

	name, _ := req.Data["name"].(string)
	attendees = append(attendees, domain.EntitySummary{
		ID:     req.UserID,
		Name:   name,
		Detail: map[string]any{"respondedAt": req.Now},
	})
	req.Shared.Collections[listKey] = attendees
	req.Shared.Counters[CounterKey(el, "count")] = float64(len(attendees))
	return rsvpResult(req, attendees, true), nil
}

func rsvpLeave(_ context.Context, req *ActionRequest) (*ActionResult, error) {
	el := req.Element.InstanceID
	listKey := CounterKey(el, "attendees")
	kept := req.Shared.Collections[listKey][:0:0]
	for _, a := range req.Shared.Collections[listKey] {
		if a.ID != req.UserID {
			kept = append(kept, a)
		}
	}
	req.Shared.Collections[listKey] = kept
	req.Shared.Counters[CounterKey(el, "count")] = float64(len(kept))
	return rsvpResult(req, kept, false), nil
}

func rsvpResult(req *ActionRequest, attendees []domain.EntitySummary, attending bool) *ActionResult {
	ids := make([]any, len(attendees))
	for i, a := range attendees {
		ids[i] = a.ID
	}
	return &ActionResult{
		Result:    map[string]any{"attending": attending, "count": len(attendees)},
		UserState: map[string]any{CounterKey(req.Element.InstanceID, "attending"): attending},
		Outputs: map[string]any{
			"attendees":   ids,
			"count":       float64(len(attendees)),
			"isAttending": attending,
		},
	}
}

func counterStep(sign float64) ActionHandler {
	return func(_ context.Context, req *ActionRequest) (*ActionResult, error) {
		cfg, _ := req.Config.(domain.CounterConfig)
		step := cfg.Step
		if step == 0 {
			step = 1
		}
		if amount, ok := toFloat(req.Data["amount"]); ok {
			step = amount
		}

		key := CounterKey(req.Element.InstanceID, "value")
		current, seen := req.Shared.Counters[key]
		if !seen {
			current = cfg.InitialValue
		}
		next := current + sign*step
		if cfg.Min != nil && next < *cfg.Min {
			next = *cfg.Min
		}
		if cfg.Max != nil && next > *cfg.Max {
			next = *cfg.Max
		}
		req.Shared.Counters[key] = next
		return counterResult(next), nil
	}
}

func counterReset(_ context.Context, req *ActionRequest) (*ActionResult, error) {
	cfg, _ := req.Config.(domain.CounterConfig)
	req.Shared.Counters[CounterKey(req.Element.InstanceID, "value")] = cfg.InitialValue
	return counterResult(cfg.InitialValue), nil
}

func counterResult(v float64) *ActionResult {
	return &ActionResult{
		Result:  map[string]any{"value": v},
		Outputs: map[string]any{"value": v, "count": v},
	}
}

func formSubmit(_ context.Context, req *ActionRequest) (*ActionResult, error) {
	cfg, _ := req.Config.(domain.FormConfig)
	var missing []string
	for _, f := range cfg.Fields {
		if !f.Required {
			continue
		}
		if v, ok := req.Data[f.Name]; !ok || v == nil || v == "" {
			missing = append(missing, f.Name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing fields %s", ErrInvalidPayload, strings.Join(missing, ", "))
	}

	el := req.Element.InstanceID
	listKey := CounterKey(el, "submissions")
	entry := domain.EntitySummary{
		ID:     uuid.NewString(),
		Name:   req.UserID,
		Detail: domain.CloneMap(req.Data),
	}
	req.Shared.Collections[listKey] = append(req.Shared.Collections[listKey], entry)
	req.Shared.Counters[listKey] = float64(len(req.Shared.Collections[listKey]))

	return &ActionResult{
		Result: map[string]any{"submissionId": entry.ID},
		UserState: map[string]any{
			CounterKey(el, "submitted"): true,
			CounterKey(el, "draft"):     nil,
		},
		Outputs: map[string]any{
			"submission": entry.ID,
			"formData":   domain.CloneMap(req.Data),
		},
	}, nil
}

func leaderboardScore(_ context.Context, req *ActionRequest) (*ActionResult, error) {
	points, ok := toFloat(req.Data["points"])
	if !ok {
		return nil, fmt.Errorf("%w: points must be a number", ErrInvalidPayload)
	}
	who, _ := req.Data["userId"].(string)
	if who == "" {
		who = req.UserID
	}
	el := req.Element.InstanceID
	req.Shared.Counters[CounterKey(el, "score", who)] += points

	cfg, _ := req.Config.(domain.LeaderboardConfig)
	rankings := Rankings(req.Shared, el, cfg.MaxEntries)
	req.Shared.Computed[CounterKey(el, "rankings")] = rankings

	out := map[string]any{"rankings": rankings}
	if len(rankings) > 0 {
		out["topEntry"] = rankings[0]
	}
	return &ActionResult{Result: map[string]any{"score": req.Shared.Counters[CounterKey(el, "score", who)]}, Outputs: out}, nil
}

// Rankings orders the "<el>:score:<user>" counters descending (ties by user id).
func Rankings(shared *domain.SharedState, el string, limit int) []any {
	prefix := CounterKey(el, "score") + ":"
	type entry struct {
		user  string
		score float64
	}
	var entries []entry
	for k, v := range shared.Counters {
		if user, ok := strings.CutPrefix(k, prefix); ok {
			entries = append(entries, entry{user, v})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].score != entries[j].score {
			return entries[i].score > entries[j].score
		}
		return entries[i].user < entries[j].user
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	out := make([]any, len(entries))
	for i, e := range entries {
		out[i] = map[string]any{"userId": e.user, "score": e.score, "rank": float64(i + 1)}
	}
	return out
}

func timerStart(_ context.Context, req *ActionRequest) (*ActionResult, error) {
	key := CounterKey(req.Element.InstanceID, "startedAt")
	if _, running := req.Shared.Computed[key]; running {
		return &ActionResult{Result: map[string]any{"running": true}}, nil
	}
	req.Shared.Computed[key] = req.Now.UTC().Format(timeLayout)
	return &ActionResult{
		Result:  map[string]any{"running": true},
		Outputs: map[string]any{"running": true},
	}, nil
}

func timerStop(_ context.Context, req *ActionRequest) (*ActionResult, error) {
	key := CounterKey(req.Element.InstanceID, "startedAt")
	raw, running := req.Shared.Computed[key].(string)
	if !running {
		return &ActionResult{Result: map[string]any{"running": false}}, nil
	}
	delete(req.Shared.Computed, key)

	elapsed := 0.0
	if started, err := parseTime(raw); err == nil {
		elapsed = req.Now.Sub(started).Seconds()
	}
	total := CounterKey(req.Element.InstanceID, "elapsed")
	req.Shared.Counters[total] += elapsed
	return &ActionResult{
		Result:  map[string]any{"running": false, "elapsed": req.Shared.Counters[total]},
		Outputs: map[string]any{"running": false, "elapsed": req.Shared.Counters[total]},
	}, nil
}

func acknowledge(_ context.Context, req *ActionRequest) (*ActionResult, error) {
	el := req.Element.InstanceID
	ackKey := CounterKey(el, "acknowledged")
	if seen, _ := req.User[ackKey].(bool); seen {
		return &ActionResult{Result: map[string]any{"acknowledged": true}}, nil
	}
	req.Shared.Counters[ackKey]++
	return &ActionResult{
		Result:    map[string]any{"acknowledged": true},
		UserState: map[string]any{ackKey: true},
		Outputs:   map[string]any{"acknowledged": req.Shared.Counters[ackKey]},
	}, nil
}

// passthrough handles actions without a dedicated behavior: every data key that
// names a declared output port becomes an output of the element.
func passthrough(_ context.Context, req *ActionRequest) (*ActionResult, error) {
	outputs := make(map[string]any)
	for _, port := range req.Kind.Outputs {
		if v, ok := req.Data[port]; ok {
			outputs[port] = domain.CloneValue(v)
		}
	}
	req.Shared.Computed[CounterKey(req.Element.InstanceID, "last")] = domain.CloneMap(req.Data)
	return &ActionResult{
		Result:  map[string]any{"ok": true},
		Outputs: outputs,
	}, nil
}

const timeLayout = time.RFC3339Nano

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func contains(items []string, s string) bool {
	for _, it := range items {
		if it == s {
			return true
		}
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	}
	return 0, false
}
