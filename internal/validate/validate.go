// Package validate holds the task invariant rules. Each rule is an
// independent predicate over (draft, creator role); Check runs them
// in a fixed order and stops at the first violation so error
// messages are reproducible.
package validate

import (
	"fmt"
	"strings"

	"taskdeck/internal/domain"
)

// MinRoadmapLines is the creation-time quality gate on the roadmap.
const MinRoadmapLines = 20

// Violation identifies one failed invariant.
type Violation struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (v *Violation) Error() string {
	return fmt.Sprintf("%s: %s", v.Code, v.Message)
}

const (
	CodeSingleAssignee      = "single_assignee"
	CodePartnerLimit        = "partner_limit"
	CodeMissingUser         = "missing_user"
	CodeDualRole            = "dual_role"
	CodeSelfPartner         = "self_partner"
	CodePartnerPlannedLabor = "partner_planned_labor"
	CodeRoadmapTooShort     = "roadmap_too_short"
)

// Draft is the proposed task state plus the context the rules need.
type Draft struct {
	Task        domain.Task
	CreatorID   string
	CreatorRole string
	AtCreation  bool
}

type rule func(Draft) *Violation

// ordered rule sequence; do not reorder.
var rules = []rule{
	exactlyOneAssignee,
	partnerLimit,
	concreteUserIDs,
	noDualRole,
	noSelfPartner,
	partnerPlannedLabor,
	roadmapLines,
}

// Check runs every invariant in order and returns the first
// violation, or nil when the draft is valid. A completion date before
// the start date is deliberately not rejected here; the stored data
// contains such rows and the gap is documented rather than fixed.
func Check(d Draft) *Violation {
	for _, r := range rules {
		if v := r(d); v != nil {
			return v
		}
	}
	return nil
}

func exactlyOneAssignee(d Draft) *Violation {
	n := 0
	for _, a := range d.Task.Assignments {
		if a.Role == domain.AssignmentAssignee {
			n++
		}
	}
	if n != 1 {
		return &Violation{Code: CodeSingleAssignee, Message: fmt.Sprintf("task must have exactly one assignee, found %d", n)}
	}
	return nil
}

func partnerLimit(d Draft) *Violation {
	n := len(d.Task.Partners())
	if n > domain.MaxPartners {
		return &Violation{Code: CodePartnerLimit, Message: fmt.Sprintf("at most %d partners allowed, found %d", domain.MaxPartners, n)}
	}
	return nil
}

func concreteUserIDs(d Draft) *Violation {
	for _, a := range d.Task.Assignments {
		id := strings.TrimSpace(a.UserID)
		if id == "" || id == "0" {
			return &Violation{Code: CodeMissingUser, Message: "every assignment needs a concrete user"}
		}
	}
	return nil
}

// A manager-created task may not list the assignee among the
// partners.
func noDualRole(d Draft) *Violation {
	if d.CreatorRole != domain.RoleManager {
		return nil
	}
	assignee := d.Task.Assignee()
	if assignee == nil {
		return nil
	}
	for _, p := range d.Task.Partners() {
		if p.UserID == assignee.UserID {
			return &Violation{Code: CodeDualRole, Message: "the assignee cannot also be a partner on the same task"}
		}
	}
	return nil
}

// An employee may not name themselves as a partner on their own task.
func noSelfPartner(d Draft) *Violation {
	if d.CreatorRole != domain.RoleEmployee {
		return nil
	}
	for _, p := range d.Task.Partners() {
		if p.UserID == d.CreatorID {
			return &Violation{Code: CodeSelfPartner, Message: "you cannot add yourself as a partner on your own task"}
		}
	}
	return nil
}

func partnerPlannedLabor(d Draft) *Violation {
	for _, p := range d.Task.Partners() {
		if p.PlannedLabor <= 0 {
			return &Violation{Code: CodePartnerPlannedLabor, Message: "every partner needs planned labor greater than zero"}
		}
	}
	return nil
}

func roadmapLines(d Draft) *Violation {
	if !d.AtCreation {
		return nil
	}
	if n := CountRoadmapLines(d.Task.Roadmap); n < MinRoadmapLines {
		return &Violation{
			Code:    CodeRoadmapTooShort,
			Message: fmt.Sprintf("roadmap must have at least %d non-empty lines, found %d", MinRoadmapLines, n),
		}
	}
	return nil
}

// CountRoadmapLines counts non-empty lines.
func CountRoadmapLines(roadmap string) int {
	n := 0
	for _, line := range strings.Split(roadmap, "\n") {
		if strings.TrimSpace(line) != "" {
			n++
		}
	}
	return n
}
