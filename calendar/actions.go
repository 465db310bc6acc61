package calendar

// =============================================================================
// ACTIONS
// =============================================================================

// ActionType tells the presentation layer how to handle an action.
type ActionType string

const (
	ActionView       ActionType = "view"
	ActionEdit       ActionType = "edit"
	ActionComplete   ActionType = "complete"
	ActionReschedule ActionType = "reschedule"
	ActionCancel     ActionType = "cancel"
	ActionNavigate   ActionType = "navigate"
)

// Stable action ids. The presentation layer dispatches by id.
const (
	ActionIDView       = "view"
	ActionIDComplete   = "complete"
	ActionIDReschedule = "reschedule"
	ActionIDEdit       = "edit"
	ActionIDCancel     = "cancel"
)

// EventAction is a stateless descriptor of something the user can do.
type EventAction struct {
	ID      string     `json:"id"`
	Label   string     `json:"label"`
	Icon    string     `json:"icon"`
	Type    ActionType `json:"type"`
	Href    string     `json:"href,omitempty"`
	Variant string     `json:"variant,omitempty"`
}

// Dispatchable reports whether the action mutates state through the core.
// View and navigate are followed by the client.
func (a EventAction) Dispatchable() bool {
	return a.Type != ActionView && a.Type != ActionNavigate
}

// ActionInput is the part of an event the action rules look at.
type ActionInput struct {
	Type        EventType
	Status      EventStatus
	RelatedID   string
	RelatedType RelatedType
}

// customRow reports whether the event is backed by a custom_events row,
// whatever type that row displays as.
func (in ActionInput) customRow() bool {
	return in.RelatedType == RelatedCustomEvent || in.Type == TypeCustom
}

// ResolveActions returns the ordered actions permitted for an event.
// Rules are additive: view, complete, reschedule, edit, cancel.
//
// Events backed by a custom_events row have no detail page and are edited
// and cancelled through that row, so a custom row shown as "maintenance"
// never links to or mutates the maintenance table.
func ResolveActions(in ActionInput) []EventAction {
	actions := make([]EventAction, 0, 4)

	if !in.customRow() {
		if view, ok := viewAction(in.Type, in.RelatedID); ok {
			actions = append(actions, view)
		}
	}

	if !in.Status.IsTerminal() && completable(in.Type) {
		actions = append(actions, EventAction{
			ID:      ActionIDComplete,
			Label:   "Mark Complete",
			Icon:    "check",
			Type:    ActionComplete,
			Variant: "default",
		})
	}

	if !in.Status.IsTerminal() {
		actions = append(actions, EventAction{
			ID:      ActionIDReschedule,
			Label:   "Reschedule",
			Icon:    "calendar-clock",
			Type:    ActionReschedule,
			Variant: "outline",
		})
	}

	if in.customRow() {
		actions = append(actions, EventAction{
			ID:      ActionIDEdit,
			Label:   "Edit",
			Icon:    "pencil",
			Type:    ActionEdit,
			Variant: "outline",
		})
		if !in.Status.IsTerminal() {
			actions = append(actions, EventAction{
				ID:      ActionIDCancel,
				Label:   "Cancel Event",
				Icon:    "x",
				Type:    ActionCancel,
				Variant: "destructive",
			})
		}
	}

	return actions
}

func completable(t EventType) bool {
	switch t {
	case TypeMaintenance, TypeInspection, TypeApplianceCheck:
		return true
	}
	return false
}

// viewAction returns the detail-page action for the type's source table.
// custom and insurance_expiration have no detail page.
func viewAction(t EventType, relatedID string) (EventAction, bool) {
	var label, base string
	switch t {
	case TypeLeaseStart, TypeLeaseEnd, TypeLeaseRenewal:
		label, base = "View Lease", "/leases/"
	case TypeRentDue, TypeExpenseDue:
		label, base = "View Transaction", "/transactions/"
	case TypeMaintenance:
		label, base = "View Request", "/maintenance/"
	case TypeInspection:
		label, base = "View Inspection", "/inspections/"
	case TypeApplianceCheck, TypeApplianceWarranty:
		label, base = "View Appliance", "/appliances/"
	default:
		return EventAction{}, false
	}
	return EventAction{
		ID:    ActionIDView,
		Label: label,
		Icon:  "eye",
		Type:  ActionView,
		Href:  base + relatedID,
	}, true
}

// FindAction returns the action with the given id.
func FindAction(actions []EventAction, id string) (EventAction, bool) {
	for _, a := range actions {
		if a.ID == id {
			return a, true
		}
	}
	return EventAction{}, false
}

// HasAction reports whether actions contains id.
func HasAction(actions []EventAction, id string) bool {
	_, ok := FindAction(actions, id)
	return ok
}
