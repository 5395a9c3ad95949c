package domain

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Well-known element kinds.
const (
	KindSearchInput         = "search-input"
	KindFilterSelector      = "filter-selector"
	KindResultList          = "result-list"
	KindDatePicker          = "date-picker"
	KindUserSelector        = "user-selector"
	KindEventPicker         = "event-picker"
	KindFormBuilder         = "form-builder"
	KindCountdownTimer      = "countdown-timer"
	KindTimer               = "timer"
	KindPoll                = "poll-element"
	KindLeaderboard         = "leaderboard"
	KindRSVPButton          = "rsvp-button"
	KindCounter             = "counter"
	KindChartDisplay        = "chart-display"
	KindAnnouncement        = "announcement"
	KindTagCloud            = "tag-cloud"
	KindNotificationDisplay = "notification-display"
	KindRoleGate            = "role-gate"
)

// ElementConfig is the typed configuration payload of one element.
// Each well-known kind has exactly one payload shape; everything else decodes
// to GenericConfig.
type ElementConfig interface {
	ConfigKind() string
}

// PollConfig configures a poll-element.
type PollConfig struct {
	Question      string   `mapstructure:"question"`
	Options       []string `mapstructure:"options"`
	AllowMultiple bool     `mapstructure:"allowMultiple"`
	ShowResults   bool     `mapstructure:"showResults"`
}

func (PollConfig) ConfigKind() string { return KindPoll }

// RSVPConfig configures an rsvp-button.
type RSVPConfig struct {
	EventName    string `mapstructure:"eventName"`
	MaxAttendees int    `mapstructure:"maxAttendees"`
	ShowCount    bool   `mapstructure:"showCount"`
}

func (RSVPConfig) ConfigKind() string { return KindRSVPButton }

// CountdownConfig configures a countdown-timer.
type CountdownConfig struct {
	TargetDate string `mapstructure:"targetDate"`
	Label      string `mapstructure:"label"`
}

func (CountdownConfig) ConfigKind() string { return KindCountdownTimer }

// CounterConfig configures a counter.
type CounterConfig struct {
	Label        string   `mapstructure:"label"`
	Step         float64  `mapstructure:"step"`
	InitialValue float64  `mapstructure:"initialValue"`
	Min          *float64 `mapstructure:"min"`
	Max          *float64 `mapstructure:"max"`
}

func (CounterConfig) ConfigKind() string { return KindCounter }

// FormField is one field of a form-builder.
type FormField struct {
	Name     string `mapstructure:"name"`
	Label    string `mapstructure:"label"`
	Type     string `mapstructure:"type"`
	Required bool   `mapstructure:"required"`
}

// FormConfig configures a form-builder.
type FormConfig struct {
	Fields      []FormField `mapstructure:"fields"`
	SubmitLabel string      `mapstructure:"submitLabel"`
}

func (FormConfig) ConfigKind() string { return KindFormBuilder }

// AnnouncementConfig configures an announcement.
type AnnouncementConfig struct {
	Title string `mapstructure:"title"`
	Body  string `mapstructure:"body"`
}

func (AnnouncementConfig) ConfigKind() string { return KindAnnouncement }

// RoleGateConfig configures a role-gate.
type RoleGateConfig struct {
	AllowedRoles []string `mapstructure:"allowedRoles"`
}

func (RoleGateConfig) ConfigKind() string { return KindRoleGate }

// LeaderboardConfig configures a leaderboard.
type LeaderboardConfig struct {
	MaxEntries int    `mapstructure:"maxEntries"`
	ScoreLabel string `mapstructure:"scoreLabel"`
}

func (LeaderboardConfig) ConfigKind() string { return KindLeaderboard }

// GenericConfig is the open key/value payload for kinds without a typed shape,
// and for generator-authored metadata.
type GenericConfig struct {
	Kind   string
	Fields map[string]any
}

func (g GenericConfig) ConfigKind() string { return g.Kind }

// DecodeConfig decodes the untyped config map of an element into its typed payload.
// Numeric strings and float/int mismatches produced by JSON decoding are tolerated.
func DecodeConfig(kind string, raw map[string]any) (ElementConfig, error) {
	var target ElementConfig
	switch kind {
	case KindPoll:
		target = &PollConfig{}
	case KindRSVPButton:
		target = &RSVPConfig{}
	case KindCountdownTimer:
		target = &CountdownConfig{}
	case KindCounter:
		target = &CounterConfig{Step: 1}
	case KindFormBuilder:
		target = &FormConfig{}
	case KindAnnouncement:
		target = &AnnouncementConfig{}
	case KindRoleGate:
		target = &RoleGateConfig{}
	case KindLeaderboard:
		target = &LeaderboardConfig{MaxEntries: 10}
	default:
		return GenericConfig{Kind: kind, Fields: CloneMap(raw)}, nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build config decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("invalid %s config: %w", kind, err)
	}
	return deref(target), nil
}

func deref(c ElementConfig) ElementConfig {
	switch t := c.(type) {
	case *PollConfig:
		return *t
	case *RSVPConfig:
		return *t
	case *CountdownConfig:
		return *t
	case *CounterConfig:
		return *t
	case *FormConfig:
		return *t
	case *AnnouncementConfig:
		return *t
	case *RoleGateConfig:
		return *t
	case *LeaderboardConfig:
		return *t
	}
	return c
}
