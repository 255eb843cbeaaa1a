package domain

import (
	"errors"
	"strings"
	"testing"
)

func ptr[T any](v T) *T { return &v }

// submittableDraft builds a draft that passes every submission check.
func submittableDraft() *Establishment {
	return &Establishment{
		ID:         "est-1",
		PartnerID:  "partner-1",
		Name:       "Kamyanitsa",
		City:       "minsk",
		Address:    "vul. Pieramozhcau 9",
		Latitude:   ptr(53.9100),
		Longitude:  ptr(27.5400),
		Categories: []string{"restaurant"},
		Cuisines:   []string{"belarusian"},
		WorkingHours: map[string]HoursInterval{
			"mon": {Open: "12:00", Close: "23:00"},
		},
		Status: StatusDraft,
	}
}

var (
	owner     = Actor{ID: "partner-1", Role: RolePartner}
	stranger  = Actor{ID: "partner-2", Role: RolePartner}
	moderator = Actor{ID: "mod-1", Role: RoleModerator}
)

func TestPlanTransitionMatrix(t *testing.T) {
	notes := map[string]string{"name": "looks made up"}

	cases := []struct {
		name    string
		from    Status
		req     TransitionRequest
		want    Status
		wantErr error
	}{
		{"draft submit", StatusDraft, TransitionRequest{Action: ActionSubmit, Actor: owner}, StatusPending, nil},
		{"draft archive", StatusDraft, TransitionRequest{Action: ActionArchive, Actor: moderator}, StatusArchived, nil},
		{"draft approve", StatusDraft, TransitionRequest{Action: ActionApprove, Actor: moderator}, "", ErrIllegalTransition},
		{"pending approve", StatusPending, TransitionRequest{Action: ActionApprove, Actor: moderator}, StatusActive, nil},
		{"pending reject", StatusPending, TransitionRequest{Action: ActionReject, Actor: moderator, Notes: notes}, StatusRejected, nil},
		{"pending submit again", StatusPending, TransitionRequest{Action: ActionSubmit, Actor: owner}, "", ErrIllegalTransition},
		{"active suspend by moderator", StatusActive, TransitionRequest{Action: ActionSuspend, Actor: moderator, Reason: "fraud report"}, StatusSuspended, nil},
		{"active suspend by owner", StatusActive, TransitionRequest{Action: ActionSuspend, Actor: owner, Reason: "renovation"}, StatusSuspended, nil},
		{"active approve", StatusActive, TransitionRequest{Action: ActionApprove, Actor: moderator}, "", ErrIllegalTransition},
		{"suspended unsuspend", StatusSuspended, TransitionRequest{Action: ActionUnsuspend, Actor: owner}, StatusActive, nil},
		{"suspended submit", StatusSuspended, TransitionRequest{Action: ActionSubmit, Actor: owner}, "", ErrIllegalTransition},
		{"rejected resubmit", StatusRejected, TransitionRequest{Action: ActionSubmit, Actor: owner}, StatusPending, nil},
		{"rejected approve", StatusRejected, TransitionRequest{Action: ActionApprove, Actor: moderator}, "", ErrIllegalTransition},
		{"archived is terminal", StatusArchived, TransitionRequest{Action: ActionSubmit, Actor: owner}, "", ErrIllegalTransition},
		{"archived cannot re-archive", StatusArchived, TransitionRequest{Action: ActionArchive, Actor: moderator}, "", ErrIllegalTransition},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			e := submittableDraft()
			e.Status = c.from

			got, err := PlanTransition(e, c.req)
			if c.wantErr != nil {
				if !errors.Is(err, c.wantErr) {
					t.Fatalf("err = %v, want %v", err, c.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != c.want {
				t.Fatalf("target = %q, want %q", got, c.want)
			}
		})
	}
}

func TestEveryStatusCanArchiveExceptArchived(t *testing.T) {
	for _, st := range Statuses {
		e := submittableDraft()
		e.Status = st
		_, err := PlanTransition(e, TransitionRequest{Action: ActionArchive, Actor: moderator})
		if st == StatusArchived {
			if !errors.Is(err, ErrIllegalTransition) {
				t.Fatalf("archived: err = %v, want ErrIllegalTransition", err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: archive failed: %v", st, err)
		}
	}
}

func TestActorChecks(t *testing.T) {
	t.Run("stranger cannot submit", func(t *testing.T) {
		e := submittableDraft()
		_, err := PlanTransition(e, TransitionRequest{Action: ActionSubmit, Actor: stranger})
		if !errors.Is(err, ErrForbidden) {
			t.Fatalf("err = %v, want ErrForbidden", err)
		}
	})

	t.Run("partner cannot approve", func(t *testing.T) {
		e := submittableDraft()
		e.Status = StatusPending
		_, err := PlanTransition(e, TransitionRequest{Action: ActionApprove, Actor: owner})
		if !errors.Is(err, ErrForbidden) {
			t.Fatalf("err = %v, want ErrForbidden", err)
		}
	})

	t.Run("partner cannot archive", func(t *testing.T) {
		e := submittableDraft()
		_, err := PlanTransition(e, TransitionRequest{Action: ActionArchive, Actor: owner})
		if !errors.Is(err, ErrForbidden) {
			t.Fatalf("err = %v, want ErrForbidden", err)
		}
	})

	t.Run("moderator cannot submit on partner's behalf", func(t *testing.T) {
		e := submittableDraft()
		_, err := PlanTransition(e, TransitionRequest{Action: ActionSubmit, Actor: moderator})
		if !errors.Is(err, ErrForbidden) {
			t.Fatalf("err = %v, want ErrForbidden", err)
		}
	})

	t.Run("stranger cannot suspend", func(t *testing.T) {
		e := submittableDraft()
		e.Status = StatusActive
		_, err := PlanTransition(e, TransitionRequest{Action: ActionSuspend, Actor: stranger, Reason: "x"})
		if !errors.Is(err, ErrForbidden) {
			t.Fatalf("err = %v, want ErrForbidden", err)
		}
	})

	t.Run("unknown role", func(t *testing.T) {
		e := submittableDraft()
		_, err := PlanTransition(e, TransitionRequest{Action: ActionSubmit, Actor: Actor{ID: "x", Role: "admin"}})
		if !errors.Is(err, ErrForbidden) {
			t.Fatalf("err = %v, want ErrForbidden", err)
		}
	})
}

func TestSubmitRequiresCompleteListing(t *testing.T) {
	breakers := []struct {
		name  string
		mut   func(e *Establishment)
		field string
	}{
		{"no name", func(e *Establishment) { e.Name = " " }, "name"},
		{"no city", func(e *Establishment) { e.City = "" }, "city"},
		{"no address", func(e *Establishment) { e.Address = "" }, "address"},
		{"no coordinates", func(e *Establishment) { e.Latitude = nil }, "coordinates"},
		{"coordinates outside region", func(e *Establishment) { e.Latitude = ptr(48.85) }, "served region"},
		{"no categories", func(e *Establishment) { e.Categories = nil }, "category"},
		{"no cuisines", func(e *Establishment) { e.Cuisines = nil }, "cuisine"},
		{"no hours", func(e *Establishment) { e.WorkingHours = nil }, "working hours"},
	}

	for _, b := range breakers {
		t.Run(b.name, func(t *testing.T) {
			e := submittableDraft()
			b.mut(e)
			_, err := PlanTransition(e, TransitionRequest{Action: ActionSubmit, Actor: owner})
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("err = %v, want ErrValidation", err)
			}
			if !strings.Contains(err.Error(), b.field) {
				t.Fatalf("error should mention %q, got: %v", b.field, err)
			}
		})
	}
}

func TestRejectRequiresNotes(t *testing.T) {
	e := submittableDraft()
	e.Status = StatusPending

	_, err := PlanTransition(e, TransitionRequest{Action: ActionReject, Actor: moderator})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}

	_, err = PlanTransition(e, TransitionRequest{
		Action: ActionReject, Actor: moderator,
		Notes: map[string]string{"address": "cannot verify"},
	})
	if err != nil {
		t.Fatalf("reject with notes: %v", err)
	}
}

func TestSuspendRequiresReason(t *testing.T) {
	e := submittableDraft()
	e.Status = StatusActive

	_, err := PlanTransition(e, TransitionRequest{Action: ActionSuspend, Actor: moderator, Reason: "  "})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}
