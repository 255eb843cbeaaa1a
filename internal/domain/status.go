package domain

import (
	"fmt"
	"strings"
)

// Action is a named lifecycle operation. Create and Update do not move
// status but share the audit vocabulary with the transitions.
type Action string

const (
	ActionCreate    Action = "create"
	ActionUpdate    Action = "update"
	ActionSubmit    Action = "submit"
	ActionApprove   Action = "approve"
	ActionReject    Action = "reject"
	ActionSuspend   Action = "suspend"
	ActionUnsuspend Action = "unsuspend"
	ActionArchive   Action = "archive"
)

// TransitionRequest is a requested status change with the inputs its
// preconditions may need.
type TransitionRequest struct {
	Action Action
	Actor  Actor
	Notes  map[string]string // approve (optional) / reject (required)
	Reason string            // suspend (required)
}

type transitionRule struct {
	to        Status
	moderator bool // a moderator may perform it
	owner     bool // the owning partner may perform it
	check     func(e *Establishment, req TransitionRequest) error
}

// transitions is the closed table of legal (status, action) pairs.
// Anything not listed here fails ErrIllegalTransition at the single
// choke point below; no handler re-derives legality. Archived has no
// outgoing transitions.
var transitions = map[Status]map[Action]transitionRule{
	StatusDraft: {
		ActionSubmit:  {to: StatusPending, owner: true, check: checkSubmittable},
		ActionArchive: {to: StatusArchived, moderator: true},
	},
	StatusPending: {
		ActionApprove: {to: StatusActive, moderator: true},
		ActionReject:  {to: StatusRejected, moderator: true, check: checkRejectNotes},
		ActionArchive: {to: StatusArchived, moderator: true},
	},
	StatusActive: {
		ActionSuspend: {to: StatusSuspended, moderator: true, owner: true, check: checkSuspendReason},
		ActionArchive: {to: StatusArchived, moderator: true},
	},
	StatusSuspended: {
		ActionUnsuspend: {to: StatusActive, moderator: true, owner: true},
		ActionArchive:   {to: StatusArchived, moderator: true},
	},
	StatusRejected: {
		ActionSubmit:  {to: StatusPending, owner: true, check: checkSubmittable},
		ActionArchive: {to: StatusArchived, moderator: true},
	},
}

// PlanTransition validates a requested transition against the table and
// returns the target status. It performs no writes; the caller executes
// the returned change with a compare-and-set on the current status.
func PlanTransition(e *Establishment, req TransitionRequest) (Status, error) {
	rule, ok := transitions[e.Status][req.Action]
	if !ok {
		return "", fmt.Errorf("%w: cannot %s an establishment in status %q",
			ErrIllegalTransition, req.Action, e.Status)
	}
	if err := checkActor(e, rule, req.Actor); err != nil {
		return "", err
	}
	if rule.check != nil {
		if err := rule.check(e, req); err != nil {
			return "", err
		}
	}
	return rule.to, nil
}

func checkActor(e *Establishment, rule transitionRule, actor Actor) error {
	switch actor.Role {
	case RoleModerator:
		if rule.moderator {
			return nil
		}
		return Forbiddenf("action is reserved to the owning partner")
	case RolePartner:
		if !rule.owner {
			return Forbiddenf("action requires moderator capability")
		}
		if !e.OwnedBy(actor.ID) {
			return Forbiddenf("caller does not own this establishment")
		}
		return nil
	default:
		return Forbiddenf("unknown actor role %q", actor.Role)
	}
}

func checkSubmittable(e *Establishment, _ TransitionRequest) error {
	if missing := submissionProblems(e); len(missing) > 0 {
		return Validationf("incomplete for submission: %s", strings.Join(missing, ", "))
	}
	return nil
}

// submissionProblems lists the required-field gaps blocking draft→pending.
func submissionProblems(e *Establishment) []string {
	var missing []string
	if strings.TrimSpace(e.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(e.City) == "" {
		missing = append(missing, "city")
	}
	if strings.TrimSpace(e.Address) == "" {
		missing = append(missing, "address")
	}
	switch {
	case !e.HasCoordinates():
		missing = append(missing, "coordinates")
	case !InRegion(*e.Latitude, *e.Longitude):
		missing = append(missing, "coordinates in served region")
	}
	if len(e.Categories) == 0 {
		missing = append(missing, "at least one category")
	}
	if len(e.Cuisines) == 0 {
		missing = append(missing, "at least one cuisine")
	}
	if len(e.WorkingHours) == 0 {
		missing = append(missing, "working hours")
	}
	return missing
}

func checkRejectNotes(_ *Establishment, req TransitionRequest) error {
	if len(req.Notes) == 0 {
		return Validationf("rejection requires at least one moderation note")
	}
	return nil
}

func checkSuspendReason(_ *Establishment, req TransitionRequest) error {
	if strings.TrimSpace(req.Reason) == "" {
		return Validationf("suspension requires a reason")
	}
	return nil
}
