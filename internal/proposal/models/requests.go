package models

import (
	"strings"

	"github.com/shopspring/decimal"

	dErrors "ipm/pkg/domainerrors"
)

// CreateProposalRequest creates a DRAFT proposal. Amount is decoded as an
// exact decimal; floats never enter the domain.
type CreateProposalRequest struct {
	Title         string          `json:"title"`
	ApplicantName string          `json:"applicantName"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
}

// Validate checks the request before any state is touched.
func (r CreateProposalRequest) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return dErrors.New(dErrors.CodeValidation, "title must not be blank")
	}
	if strings.TrimSpace(r.ApplicantName) == "" {
		return dErrors.New(dErrors.CodeValidation, "applicantName must not be blank")
	}
	if r.Amount.IsNegative() {
		return dErrors.New(dErrors.CodeValidation, "amount must be non-negative")
	}
	return nil
}

// SubmitRequest moves a DRAFT proposal into review. Chain overrides the
// configured default approval chain when non-empty.
type SubmitRequest struct {
	Chain []string `json:"approvalChain,omitempty"`
}

// DecisionRequest records an approve or reject on the current step.
type DecisionRequest struct {
	Approver string `json:"approver"`
	Comments string `json:"comments,omitempty"`
}

// Validate checks the acting approver is identified.
func (r DecisionRequest) Validate() error {
	if strings.TrimSpace(r.Approver) == "" {
		return dErrors.New(dErrors.CodeValidation, "approver must not be blank")
	}
	return nil
}

// NormalizeChain trims roles and drops blanks, preserving order.
func NormalizeChain(chain []string) []string {
	out := make([]string, 0, len(chain))
	for _, role := range chain {
		if role = strings.TrimSpace(role); role != "" {
			out = append(out, role)
		}
	}
	return out
}

// ListResponse is the paged read shape for proposal listings.
type ListResponse struct {
	Items []*Proposal `json:"items"`
	Total int         `json:"total"`
	Page  int         `json:"page"`
	Size  int         `json:"size"`
}
