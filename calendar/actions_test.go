package calendar_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/warp/property-engine/calendar"
)

func actionIDs(actions []calendar.EventAction) []string {
	ids := make([]string, len(actions))
	for i, a := range actions {
		ids[i] = a.ID
	}
	return ids
}

func TestActions_Deterministic(t *testing.T) {
	for _, typ := range calendar.AllEventTypes() {
		for _, st := range calendar.AllStatuses() {
			in := calendar.ActionInput{Type: typ, Status: st, RelatedID: "r-1"}
			assert.Equal(t, calendar.ResolveActions(in), calendar.ResolveActions(in), "%s/%s", typ, st)
		}
	}
}

func TestActions_MarkCompleteGating(t *testing.T) {
	custom := calendar.ResolveActions(calendar.ActionInput{Type: calendar.TypeCustom, Status: calendar.StatusUpcoming, RelatedID: "c1"})
	assert.False(t, calendar.HasAction(custom, calendar.ActionIDComplete))

	maint := calendar.ResolveActions(calendar.ActionInput{Type: calendar.TypeMaintenance, Status: calendar.StatusUpcoming, RelatedID: "m1"})
	assert.True(t, calendar.HasAction(maint, calendar.ActionIDComplete))

	for _, typ := range []calendar.EventType{calendar.TypeMaintenance, calendar.TypeInspection, calendar.TypeApplianceCheck} {
		overdue := calendar.ResolveActions(calendar.ActionInput{Type: typ, Status: calendar.StatusOverdue})
		assert.True(t, calendar.HasAction(overdue, calendar.ActionIDComplete), typ)

		done := calendar.ResolveActions(calendar.ActionInput{Type: typ, Status: calendar.StatusCompleted})
		assert.False(t, calendar.HasAction(done, calendar.ActionIDComplete), typ)
	}

	for _, typ := range []calendar.EventType{calendar.TypeLeaseEnd, calendar.TypeRentDue, calendar.TypeApplianceWarranty} {
		got := calendar.ResolveActions(calendar.ActionInput{Type: typ, Status: calendar.StatusOverdue})
		assert.False(t, calendar.HasAction(got, calendar.ActionIDComplete), typ)
	}
}

func TestActions_OrderedList(t *testing.T) {
	cases := []struct {
		name string
		in   calendar.ActionInput
		want []string
	}{
		{"maintenance upcoming", calendar.ActionInput{Type: calendar.TypeMaintenance, Status: calendar.StatusUpcoming, RelatedID: "m1"}, []string{"view", "complete", "reschedule"}},
		{"maintenance completed", calendar.ActionInput{Type: calendar.TypeMaintenance, Status: calendar.StatusCompleted, RelatedID: "m1"}, []string{"view"}},
		{"lease end overdue", calendar.ActionInput{Type: calendar.TypeLeaseEnd, Status: calendar.StatusOverdue, RelatedID: "L1"}, []string{"view", "reschedule"}},
		{"custom upcoming", calendar.ActionInput{Type: calendar.TypeCustom, Status: calendar.StatusUpcoming, RelatedID: "c1"}, []string{"reschedule", "edit", "cancel"}},
		{"custom cancelled", calendar.ActionInput{Type: calendar.TypeCustom, Status: calendar.StatusCancelled, RelatedID: "c1"}, []string{"edit"}},
		{"insurance upcoming", calendar.ActionInput{Type: calendar.TypeInsuranceExpiration, Status: calendar.StatusUpcoming, RelatedID: "c2"}, []string{"reschedule"}},
		{"insurance completed", calendar.ActionInput{Type: calendar.TypeInsuranceExpiration, Status: calendar.StatusCompleted, RelatedID: "c2"}, []string{}},
		{"insurance reminder row", calendar.ActionInput{Type: calendar.TypeInsuranceExpiration, Status: calendar.StatusUpcoming, RelatedID: "c2", RelatedType: calendar.RelatedCustomEvent}, []string{"reschedule", "edit", "cancel"}},
		{"custom row typed maintenance", calendar.ActionInput{Type: calendar.TypeMaintenance, Status: calendar.StatusOverdue, RelatedID: "c3", RelatedType: calendar.RelatedCustomEvent}, []string{"complete", "reschedule", "edit", "cancel"}},
		{"custom row typed lease end", calendar.ActionInput{Type: calendar.TypeLeaseEnd, Status: calendar.StatusCompleted, RelatedID: "c4", RelatedType: calendar.RelatedCustomEvent}, []string{"edit"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, actionIDs(calendar.ResolveActions(tc.in)))
		})
	}
}

func TestActions_ViewHrefs(t *testing.T) {
	cases := map[calendar.EventType]string{
		calendar.TypeLeaseStart:        "/leases/x",
		calendar.TypeLeaseRenewal:      "/leases/x",
		calendar.TypeRentDue:           "/transactions/x",
		calendar.TypeExpenseDue:        "/transactions/x",
		calendar.TypeMaintenance:       "/maintenance/x",
		calendar.TypeInspection:        "/inspections/x",
		calendar.TypeApplianceCheck:    "/appliances/x",
		calendar.TypeApplianceWarranty: "/appliances/x",
	}
	for typ, href := range cases {
		view, ok := calendar.FindAction(calendar.ResolveActions(calendar.ActionInput{Type: typ, Status: calendar.StatusUpcoming, RelatedID: "x"}), "view")
		if assert.True(t, ok, typ) {
			assert.Equal(t, href, view.Href, typ)
			assert.Equal(t, calendar.ActionView, view.Type)
			assert.False(t, view.Dispatchable())
		}
	}
}

func TestActions_RescheduleOnlyWhileOpen(t *testing.T) {
	for _, typ := range calendar.AllEventTypes() {
		open := calendar.ResolveActions(calendar.ActionInput{Type: typ, Status: calendar.StatusUpcoming})
		assert.True(t, calendar.HasAction(open, calendar.ActionIDReschedule), typ)

		closed := calendar.ResolveActions(calendar.ActionInput{Type: typ, Status: calendar.StatusCancelled})
		assert.False(t, calendar.HasAction(closed, calendar.ActionIDReschedule), typ)
	}
}
