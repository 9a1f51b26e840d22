package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAssignsIDAndTime(t *testing.T) {
	ev := New(TypeStepApproved, 7, StepApproved{Role: "PEER_REVIEW", Approver: "alice", NextStep: 1})

	assert.NotEmpty(t, ev.ID)
	assert.WithinDuration(t, time.Now(), ev.At, time.Minute)
	assert.Equal(t, int64(7), ev.ProposalID)
	assert.Equal(t, map[string]any{"role": "PEER_REVIEW", "approver": "alice", "nextStep": 1}, ev.Payload)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	ev := New(TypeProposalRejected, 12, ProposalRejected{Role: "LEGAL", Approver: "dave", Reason: "non-compliant"})

	data, err := Encode(ev)
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, ev.ID, got.ID)
	assert.Equal(t, TypeProposalRejected, got.Type)
	assert.Equal(t, "dave", got.StringField("approver"))
	assert.Equal(t, "non-compliant", got.StringField("reason"))
}

func TestDecodeToleratesUnknownPayloadKeys(t *testing.T) {
	data := []byte(`{"id":"e1","type":"PROPOSAL_SUBMITTED","proposalId":3,` +
		`"payload":{"chain":["LEGAL"],"futureKey":{"nested":true}},"at":"2026-01-02T03:04:05Z"}`)

	ev, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, TypeProposalSubmitted, ev.Type)
	assert.Contains(t, ev.Payload, "futureKey")
}

func TestDecodeRejectsMissingType(t *testing.T) {
	_, err := Decode([]byte(`{"id":"e1","proposalId":3}`))
	assert.Error(t, err)
}

func TestDecodeRejectsMalformedJSON(t *testing.T) {
	_, err := Decode([]byte(`{not json`))
	assert.Error(t, err)
}

func TestStringFieldToleratesNonStrings(t *testing.T) {
	ev := Event{Payload: map[string]any{"nextStep": float64(2)}}
	assert.Equal(t, "", ev.StringField("nextStep"))
	assert.Equal(t, "", ev.StringField("missing"))
}
