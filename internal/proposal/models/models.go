// Package models holds the proposal aggregate and its request/response
// shapes. The aggregate is mutated only through the workflow service.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the proposal lifecycle state.
type Status string

const (
	StatusDraft       Status = "DRAFT"
	StatusUnderReview Status = "UNDER_REVIEW"
	StatusApproved    Status = "APPROVED"
	StatusRejected    Status = "REJECTED"
)

// Valid reports whether s is one of the four lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusUnderReview, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether no further mutation is permitted.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Decision is one step's outcome.
type Decision string

const (
	DecisionPending  Decision = "PENDING"
	DecisionApproved Decision = "APPROVED"
	DecisionRejected Decision = "REJECTED"
)

// ApprovalStep is one role's pending/decided state within a chain. Steps are
// ordered by StepOrder, 0-based and contiguous per proposal.
type ApprovalStep struct {
	StepOrder int        `json:"stepOrder"`
	Role      string     `json:"role"`
	Approver  string     `json:"approver,omitempty"`
	Decision  Decision   `json:"decision"`
	Comments  string     `json:"comments,omitempty"`
	DecidedAt *time.Time `json:"decidedAt,omitempty"`
}

// Proposal is the aggregate root. CurrentStepIndex points at the only step
// allowed to be PENDING while the proposal is UNDER_REVIEW; all earlier
// steps are APPROVED.
type Proposal struct {
	ID               int64           `json:"id"`
	Title            string          `json:"title"`
	ApplicantName    string          `json:"applicantName"`
	Amount           decimal.Decimal `json:"amount"`
	Description      string          `json:"description"`
	Status           Status          `json:"status"`
	CurrentStepIndex int             `json:"currentStepIndex"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
	SubmittedAt      *time.Time      `json:"submittedAt,omitempty"`
	Steps            []ApprovalStep  `json:"steps"`
}

// Clone deep-copies the aggregate so stores can hand out mutable snapshots.
func (p *Proposal) Clone() *Proposal {
	cp := *p
	if p.SubmittedAt != nil {
		t := *p.SubmittedAt
		cp.SubmittedAt = &t
	}
	cp.Steps = make([]ApprovalStep, len(p.Steps))
	for i, s := range p.Steps {
		cp.Steps[i] = s
		if s.DecidedAt != nil {
			t := *s.DecidedAt
			cp.Steps[i].DecidedAt = &t
		}
	}
	return &cp
}
