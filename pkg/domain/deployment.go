package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// TargetType is the kind of context a composition is deployed into.
type TargetType string

const (
	TargetProfile TargetType = "profile"
	TargetSpace   TargetType = "space"
	TargetInline  TargetType = "inline"
)

// DeploymentID identifies one placement of a composition.
// Derived ids have the form "<targetType>:<targetContext>_<placementId>";
// any other non-empty string is accepted as an opaque id.
type DeploymentID string

// NewDeploymentID derives a deployment id from a target context and placement.
// An empty placement gets a fresh random id.
func NewDeploymentID(target TargetType, context, placement string) DeploymentID {
	if placement == "" {
		placement = uuid.NewString()
	}
	return DeploymentID(fmt.Sprintf("%s:%s_%s", target, context, placement))
}

// DeploymentTarget is the decomposed form of a derived deployment id.
type DeploymentTarget struct {
	Type      TargetType
	Context   string
	Placement string
}

// Parse splits a derived id into its parts. Opaque ids return ok=false.
func (id DeploymentID) Parse() (DeploymentTarget, bool) {
	s := string(id)
	typ, rest, found := strings.Cut(s, ":")
	if !found || typ == "" {
		return DeploymentTarget{}, false
	}
	switch TargetType(typ) {
	case TargetProfile, TargetSpace, TargetInline:
	default:
		return DeploymentTarget{}, false
	}
	// Context ids may themselves contain underscores, the placement is the last segment.
	idx := strings.LastIndex(rest, "_")
	if idx <= 0 || idx == len(rest)-1 {
		return DeploymentTarget{}, false
	}
	return DeploymentTarget{
		Type:      TargetType(typ),
		Context:   rest[:idx],
		Placement: rest[idx+1:],
	}, true
}

// SpaceID returns the space context of a space deployment, or "".
func (id DeploymentID) SpaceID() string {
	if t, ok := id.Parse(); ok && t.Type == TargetSpace {
		return t.Context
	}
	return ""
}

// Validate rejects empty ids and ids containing path separators or whitespace.
func (id DeploymentID) Validate() error {
	s := string(id)
	if s == "" {
		return fmt.Errorf("%w: empty", ErrInvalidDeploymentID)
	}
	if strings.ContainsAny(s, "/\\ \t\n") {
		return fmt.Errorf("%w: %q", ErrInvalidDeploymentID, s)
	}
	return nil
}

func (id DeploymentID) String() string { return string(id) }
