/*
registry.go - Event type registry

PURPOSE:
  Maps every EventType to its display metadata (label, icon, colors).
  Everything downstream (builder, ICS export, API) consults it.

HOW IT WORKS:
  1. DefaultRegistry() builds the built-in table once
  2. NewRegistry() validates that the table covers AllEventTypes()
  3. The Registry value is passed to the Builder; there is no package-level
     lookup, so tests can inject a different table

TOTALITY:
  Go has no exhaustive switch, so totality is checked when the registry is
  constructed: a missing or unknown type is an error there, and Lookup on a
  value outside the enumeration returns UnknownEventTypeError.

SEE ALSO:
  - event.go: EventType enumeration
  - builder.go: Copies the config onto each event
*/
package calendar

import (
	"fmt"
	"sort"
)

// =============================================================================
// EVENT TYPES
// =============================================================================

// EventType is the closed set of calendar event categories.
type EventType string

const (
	TypeLeaseStart          EventType = "lease_start"
	TypeLeaseEnd            EventType = "lease_end"
	TypeLeaseRenewal        EventType = "lease_renewal"
	TypeRentDue             EventType = "rent_due"
	TypeExpenseDue          EventType = "expense_due"
	TypeInspection          EventType = "inspection"
	TypeMaintenance         EventType = "maintenance"
	TypeApplianceCheck      EventType = "appliance_check"
	TypeApplianceWarranty   EventType = "appliance_warranty"
	TypeInsuranceExpiration EventType = "insurance_expiration"
	TypeCustom              EventType = "custom"
)

var allEventTypes = []EventType{
	TypeLeaseStart,
	TypeLeaseEnd,
	TypeLeaseRenewal,
	TypeRentDue,
	TypeExpenseDue,
	TypeInspection,
	TypeMaintenance,
	TypeApplianceCheck,
	TypeApplianceWarranty,
	TypeInsuranceExpiration,
	TypeCustom,
}

// AllEventTypes returns the enumeration in declaration order.
func AllEventTypes() []EventType {
	out := make([]EventType, len(allEventTypes))
	copy(out, allEventTypes)
	return out
}

// Valid reports whether t belongs to the enumeration.
func (t EventType) Valid() bool {
	for _, v := range allEventTypes {
		if v == t {
			return true
		}
	}
	return false
}

// ParseEventType converts a string into an EventType.
func ParseEventType(s string) (EventType, error) {
	t := EventType(s)
	if !t.Valid() {
		return "", &UnknownEventTypeError{Type: t}
	}
	return t, nil
}

// =============================================================================
// REGISTRY
// =============================================================================

// EventTypeConfig is the display metadata of one event type.
type EventTypeConfig struct {
	Label           string `json:"label" yaml:"label"`
	Icon            string `json:"icon" yaml:"icon"`
	Color           string `json:"color" yaml:"color"`
	BackgroundColor string `json:"background_color" yaml:"background_color"`
	BorderColor     string `json:"border_color" yaml:"border_color"`
}

// Registry is an immutable EventType -> EventTypeConfig table.
type Registry struct {
	entries map[EventType]EventTypeConfig
}

// NewRegistry copies entries and checks that they cover exactly the enumeration.
func NewRegistry(entries map[EventType]EventTypeConfig) (Registry, error) {
	table := make(map[EventType]EventTypeConfig, len(entries))
	for t, cfg := range entries {
		if !t.Valid() {
			return Registry{}, &UnknownEventTypeError{Type: t}
		}
		table[t] = cfg
	}
	var missing []string
	for _, t := range allEventTypes {
		if _, ok := table[t]; !ok {
			missing = append(missing, string(t))
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return Registry{}, fmt.Errorf("%w: registry missing %v", ErrUnknownEventType, missing)
	}
	return Registry{entries: table}, nil
}

// MustNewRegistry panics when entries are not total.
func MustNewRegistry(entries map[EventType]EventTypeConfig) Registry {
	r, err := NewRegistry(entries)
	if err != nil {
		panic(err)
	}
	return r
}

// Lookup returns the display config of t.
func (r Registry) Lookup(t EventType) (EventTypeConfig, error) {
	cfg, ok := r.entries[t]
	if !ok {
		return EventTypeConfig{}, &UnknownEventTypeError{Type: t}
	}
	return cfg, nil
}

// MustLookup finds the config of t or panics.
func (r Registry) MustLookup(t EventType) EventTypeConfig {
	cfg, err := r.Lookup(t)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Entries returns the table in enumeration order.
func (r Registry) Entries() []RegistryEntry {
	out := make([]RegistryEntry, 0, len(allEventTypes))
	for _, t := range allEventTypes {
		if cfg, ok := r.entries[t]; ok {
			out = append(out, RegistryEntry{Type: t, Config: cfg})
		}
	}
	return out
}

// RegistryEntry pairs a type with its config for listing.
type RegistryEntry struct {
	Type   EventType
	Config EventTypeConfig
}

// DefaultRegistry returns the built-in display table.
func DefaultRegistry() Registry {
	return MustNewRegistry(map[EventType]EventTypeConfig{
		TypeLeaseStart:          {Label: "Lease Start", Icon: "file-signature", Color: "#15803d", BackgroundColor: "#dcfce7", BorderColor: "#86efac"},
		TypeLeaseEnd:            {Label: "Lease End", Icon: "file-x", Color: "#b91c1c", BackgroundColor: "#fee2e2", BorderColor: "#fca5a5"},
		TypeLeaseRenewal:        {Label: "Lease Renewal", Icon: "refresh-cw", Color: "#1d4ed8", BackgroundColor: "#dbeafe", BorderColor: "#93c5fd"},
		TypeRentDue:             {Label: "Rent Due", Icon: "dollar-sign", Color: "#047857", BackgroundColor: "#d1fae5", BorderColor: "#6ee7b7"},
		TypeExpenseDue:          {Label: "Expense Due", Icon: "receipt", Color: "#c2410c", BackgroundColor: "#ffedd5", BorderColor: "#fdba74"},
		TypeInspection:          {Label: "Inspection", Icon: "clipboard-check", Color: "#6d28d9", BackgroundColor: "#ede9fe", BorderColor: "#c4b5fd"},
		TypeMaintenance:         {Label: "Maintenance", Icon: "wrench", Color: "#a16207", BackgroundColor: "#fef9c3", BorderColor: "#fde047"},
		TypeApplianceCheck:      {Label: "Appliance Check", Icon: "settings", Color: "#0e7490", BackgroundColor: "#cffafe", BorderColor: "#67e8f9"},
		TypeApplianceWarranty:   {Label: "Warranty Expiration", Icon: "shield-alert", Color: "#be185d", BackgroundColor: "#fce7f3", BorderColor: "#f9a8d4"},
		TypeInsuranceExpiration: {Label: "Insurance Expiration", Icon: "shield", Color: "#4338ca", BackgroundColor: "#e0e7ff", BorderColor: "#a5b4fc"},
		TypeCustom:              {Label: "Event", Icon: "calendar", Color: "#374151", BackgroundColor: "#f3f4f6", BorderColor: "#d1d5db"},
	})
}

// Override returns a copy of r with the non-empty fields of each override
// applied on top of the existing entry.
func (r Registry) Override(overrides map[EventType]EventTypeConfig) (Registry, error) {
	table := make(map[EventType]EventTypeConfig, len(r.entries))
	for t, cfg := range r.entries {
		table[t] = cfg
	}
	for t, o := range overrides {
		cfg, ok := table[t]
		if !ok {
			return Registry{}, &UnknownEventTypeError{Type: t}
		}
		if o.Label != "" {
			cfg.Label = o.Label
		}
		if o.Icon != "" {
			cfg.Icon = o.Icon
		}
		if o.Color != "" {
			cfg.Color = o.Color
		}
		if o.BackgroundColor != "" {
			cfg.BackgroundColor = o.BackgroundColor
		}
		if o.BorderColor != "" {
			cfg.BorderColor = o.BorderColor
		}
		table[t] = cfg
	}
	return NewRegistry(table)
}
