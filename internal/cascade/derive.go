package cascade

import (
	"sort"

	"github.com/campushive/hivelab/pkg/domain"
	"github.com/campushive/hivelab/pkg/registry"
)

// Deriver computes an element's outputs from its current inputs.
// It must not mutate inputs.
type Deriver func(el *domain.CanvasElement, inputs map[string]any) map[string]any

// Passthrough forwards every input to the output of the same name, when the
// kind declares one.
func Passthrough(reg *registry.ElementRegistry) Deriver {
	return func(el *domain.CanvasElement, inputs map[string]any) map[string]any {
		out := make(map[string]any)
		for port, v := range inputs {
			if reg.HasOutput(el.Kind, port) {
				out[port] = v
			}
		}
		return out
	}
}

// DefaultDerivers returns derivers for kinds whose outputs are not a plain
// passthrough of their inputs.
func DefaultDerivers() map[string]Deriver {
	return map[string]Deriver{
		domain.KindRoleGate:    roleGate,
		domain.KindLeaderboard: leaderboard,
	}
}

// roleGate routes a user to "allowed" or "denied" by its role.
func roleGate(el *domain.CanvasElement, inputs map[string]any) map[string]any {
	user, ok := inputs["user"]
	if !ok {
		user, ok = inputs["selectedUser"]
	}
	if !ok {
		return nil
	}
	cfg, err := domain.DecodeConfig(el.Kind, el.Config)
	if err != nil {
		return nil
	}
	gate, _ := cfg.(domain.RoleGateConfig)
	role := ""
	if m, isMap := user.(map[string]any); isMap {
		role, _ = m["role"].(string)
	}
	for _, allowed := range gate.AllowedRoles {
		if allowed == role {
			return map[string]any{"allowed": user}
		}
	}
	return map[string]any{"denied": user}
}

// leaderboard ranks a score map into rankings and the top entry.
func leaderboard(el *domain.CanvasElement, inputs map[string]any) map[string]any {
	raw, ok := inputs["scores"].(map[string]any)
	if !ok {
		return nil
	}
	type entry struct {
		id    string
		score float64
	}
	var entries []entry
	for id, v := range raw {
		if f, isNum := v.(float64); isNum {
			entries = append(entries, entry{id, f})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].score != entries[j].score {
			return entries[i].score > entries[j].score
		}
		return entries[i].id < entries[j].id
	})
	limit := 10
	if cfg, err := domain.DecodeConfig(el.Kind, el.Config); err == nil {
		if lb, ok := cfg.(domain.LeaderboardConfig); ok && lb.MaxEntries > 0 {
			limit = lb.MaxEntries
		}
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}
	rankings := make([]any, len(entries))
	for i, e := range entries {
		rankings[i] = map[string]any{"id": e.id, "score": e.score, "rank": i + 1}
	}
	out := map[string]any{"rankings": rankings}
	if len(rankings) > 0 {
		out["topEntry"] = rankings[0]
	}
	return out
}
