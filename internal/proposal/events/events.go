// Package events defines the domain events emitted on every proposal state
// transition and their wire form.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type enumerates the five transition events.
type Type string

const (
	TypeProposalSubmitted Type = "PROPOSAL_SUBMITTED"
	TypeStepApproved      Type = "STEP_APPROVED"
	TypeStepRejected      Type = "STEP_REJECTED"
	TypeProposalApproved  Type = "PROPOSAL_APPROVED"
	TypeProposalRejected  Type = "PROPOSAL_REJECTED"
)

// Event is an immutable fact describing one completed transition. Payload is
// the wire form; consumers must tolerate unknown keys.
type Event struct {
	ID         string         `json:"id"`
	Type       Type           `json:"type"`
	ProposalID int64          `json:"proposalId"`
	Payload    map[string]any `json:"payload,omitempty"`
	At         time.Time      `json:"at"`
}

// Payload is the typed side of the event payload. Each event type has a
// variant with named fields; the untyped map exists only at the wire
// boundary.
type Payload interface {
	Payload() map[string]any
}

// Submitted is carried by PROPOSAL_SUBMITTED.
type Submitted struct {
	Chain []string
}

func (p Submitted) Payload() map[string]any {
	return map[string]any{"chain": p.Chain}
}

// StepApproved is carried by STEP_APPROVED.
type StepApproved struct {
	Role     string
	Approver string
	NextStep int
}

func (p StepApproved) Payload() map[string]any {
	return map[string]any{"role": p.Role, "approver": p.Approver, "nextStep": p.NextStep}
}

// ProposalApproved is carried by PROPOSAL_APPROVED.
type ProposalApproved struct {
	Role     string
	Approver string
}

func (p ProposalApproved) Payload() map[string]any {
	return map[string]any{"role": p.Role, "approver": p.Approver}
}

// ProposalRejected is carried by PROPOSAL_REJECTED.
type ProposalRejected struct {
	Role     string
	Approver string
	Reason   string
}

func (p ProposalRejected) Payload() map[string]any {
	return map[string]any{"role": p.Role, "approver": p.Approver, "reason": p.Reason}
}

// New builds an event with a fresh id and the current time.
func New(t Type, proposalID int64, payload Payload) Event {
	ev := Event{
		ID:         uuid.NewString(),
		Type:       t,
		ProposalID: proposalID,
		At:         time.Now().UTC(),
	}
	if payload != nil {
		ev.Payload = payload.Payload()
	}
	return ev
}

// Encode marshals the event to its wire JSON.
func Encode(ev Event) ([]byte, error) {
	return json.Marshal(ev)
}

// Decode unmarshals wire JSON into an event. Unknown payload keys are kept;
// a missing type is an error since consumers branch on it.
func Decode(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if ev.Type == "" {
		return Event{}, fmt.Errorf("decode event: missing type")
	}
	return ev, nil
}

// StringField reads a string payload value, tolerating absence and other
// JSON-compatible types.
func (e Event) StringField(key string) string {
	v, ok := e.Payload[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
