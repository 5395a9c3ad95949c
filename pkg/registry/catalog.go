package registry

import (
	"github.com/campushive/hivelab/pkg/domain"
	"github.com/campushive/hivelab/pkg/schema"
)

// Element categories used by the editor palette.
const (
	CategoryInput   = "input"
	CategoryDisplay = "display"
	CategoryAction  = "action"
	CategoryLogic   = "logic"
)

// Catalog returns the built-in element kinds. A new slice is returned on every call.
func Catalog() []domain.ElementKind {
	return []domain.ElementKind{
		{
			Kind:     domain.KindSearchInput,
			Category: CategoryInput,
			Outputs:  []string{"query", "searchTerm"},
			Inputs:   []string{"suggestions"},
			ConfigSchema: schema.Schema{
				"placeholder": schema.String(),
				"debounceMs":  schema.Int(),
			},
		},
		{
			Kind:     domain.KindFilterSelector,
			Category: CategoryInput,
			Outputs:  []string{"filters", "selection"},
			Inputs:   []string{"options", "data"},
			ConfigSchema: schema.Schema{
				"options":       schema.Slice(schema.Any()),
				"allowMultiple": schema.Bool(),
			},
		},
		{
			Kind:     domain.KindResultList,
			Category: CategoryDisplay,
			Outputs:  []string{"selection", "selectedItem"},
			Inputs:   []string{"items", "data", "query", "filters"},
			ConfigSchema: schema.Schema{
				"pageSize": schema.Int(),
			},
		},
		{
			Kind:     domain.KindDatePicker,
			Category: CategoryInput,
			Outputs:  []string{"date", "dateRange"},
			Inputs:   []string{"minDate"},
		},
		{
			Kind:     domain.KindUserSelector,
			Category: CategoryInput,
			Outputs:  []string{"users", "selectedUser"},
			Inputs:   []string{"filters"},
		},
		{
			Kind:     domain.KindEventPicker,
			Category: CategoryInput,
			Outputs:  []string{"event", "eventData"},
			Inputs:   []string{"date", "filters"},
		},
		{
			Kind:                 domain.KindFormBuilder,
			Category:             CategoryInput,
			Outputs:              []string{"submission", "formData"},
			Inputs:               []string{"prefill"},
			RequiredConfigFields: []string{"fields"},
			ConfigSchema: schema.Schema{
				"fields":      schema.NonEmpty(schema.Slice(schema.Object())),
				"submitLabel": schema.String(),
			},
		},
		{
			Kind:                 domain.KindCountdownTimer,
			Category:             CategoryDisplay,
			Outputs:              []string{"finished", "timeLeft"},
			Inputs:               []string{"targetDate"},
			RequiredConfigFields: []string{"targetDate"},
			ConfigSchema: schema.Schema{
				"targetDate": schema.NonEmpty(schema.String()),
				"label":      schema.String(),
			},
		},
		{
			Kind:     domain.KindTimer,
			Category: CategoryAction,
			Outputs:  []string{"elapsed", "running"},
			Inputs:   []string{"start", "stop"},
		},
		{
			Kind:                 domain.KindPoll,
			Category:             CategoryAction,
			Outputs:              []string{"results", "votes", "winner"},
			Inputs:               []string{"options"},
			RequiredConfigFields: []string{"question", "options"},
			ConfigSchema: schema.Schema{
				"question":      schema.NonEmpty(schema.String()),
				"options":       schema.NonEmpty(schema.Slice(schema.String())),
				"allowMultiple": schema.Bool(),
				"showResults":   schema.Bool(),
			},
		},
		{
			Kind:     domain.KindLeaderboard,
			Category: CategoryDisplay,
			Outputs:  []string{"rankings", "topEntry"},
			Inputs:   []string{"scores", "data"},
			ConfigSchema: schema.Schema{
				"maxEntries": schema.Int(),
				"scoreLabel": schema.String(),
			},
		},
		{
			Kind:                 domain.KindRSVPButton,
			Category:             CategoryAction,
			Outputs:              []string{"attendees", "count", "isAttending"},
			Inputs:               []string{"eventData"},
			RequiredConfigFields: []string{"eventName"},
			ConfigSchema: schema.Schema{
				"eventName":    schema.NonEmpty(schema.String()),
				"maxAttendees": schema.Int(),
				"showCount":    schema.Bool(),
			},
		},
		{
			Kind:     domain.KindCounter,
			Category: CategoryAction,
			Outputs:  []string{"value", "count"},
			Inputs:   []string{"increment", "reset"},
			ConfigSchema: schema.Schema{
				"label":        schema.String(),
				"step":         schema.Number(),
				"initialValue": schema.Number(),
				"min":          schema.Number(),
				"max":          schema.Number(),
			},
		},
		{
			Kind:     domain.KindChartDisplay,
			Category: CategoryDisplay,
			Outputs:  []string{"selection"},
			Inputs:   []string{"data", "series", "results"},
			ConfigSchema: schema.Schema{
				"chartType": schema.Enum("bar", "line", "pie"),
			},
		},
		{
			Kind:                 domain.KindAnnouncement,
			Category:             CategoryDisplay,
			Outputs:              []string{"acknowledged"},
			Inputs:               []string{"message"},
			RequiredConfigFields: []string{"title"},
			ConfigSchema: schema.Schema{
				"title": schema.NonEmpty(schema.String()),
				"body":  schema.String(),
			},
		},
		{
			Kind:     domain.KindTagCloud,
			Category: CategoryDisplay,
			Outputs:  []string{"selectedTag"},
			Inputs:   []string{"tags", "data"},
		},
		{
			Kind:     domain.KindNotificationDisplay,
			Category: CategoryDisplay,
			Outputs:  []string{"dismissed"},
			Inputs:   []string{"message", "trigger", "finished"},
		},
		{
			Kind:                 domain.KindRoleGate,
			Category:             CategoryLogic,
			Outputs:              []string{"allowed", "denied"},
			Inputs:               []string{"user", "selectedUser"},
			RequiredConfigFields: []string{"allowedRoles"},
			ConfigSchema: schema.Schema{
				"allowedRoles": schema.NonEmpty(schema.Slice(schema.String())),
			},
		},
	}
}
