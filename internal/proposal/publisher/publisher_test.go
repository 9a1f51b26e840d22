package publisher

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ipm/internal/platform/kafka/producer"
	"ipm/internal/proposal/events"
	dErrors "ipm/pkg/domainerrors"
)

type fakeChannel struct {
	records []producer.Record
	failOn  map[string]error
}

func (f *fakeChannel) Produce(_ context.Context, rec producer.Record) error {
	f.records = append(f.records, rec)
	if err := f.failOn[rec.Topic]; err != nil {
		return err
	}
	return nil
}

func TestPublishWritesBothTopics(t *testing.T) {
	ch := &fakeChannel{}
	p := New(ch, "proposal-events", "audit-logs")

	ev := events.New(events.TypeProposalSubmitted, 42, events.Submitted{Chain: []string{"LEGAL"}})
	require.NoError(t, p.Publish(context.Background(), ev))

	require.Len(t, ch.records, 2)
	assert.Equal(t, "proposal-events", ch.records[0].Topic)
	assert.Equal(t, []byte("42"), ch.records[0].Key, "structured record keyed by proposal id")
	assert.Contains(t, string(ch.records[0].Value), `"type":"PROPOSAL_SUBMITTED"`)

	assert.Equal(t, "audit-logs", ch.records[1].Topic)
	assert.Nil(t, ch.records[1].Key, "audit line is unkeyed")
	assert.Contains(t, string(ch.records[1].Value), "PROPOSAL_SUBMITTED proposalId=42")
}

func TestPublishAssignsMissingID(t *testing.T) {
	ch := &fakeChannel{}
	p := New(ch, "proposal-events", "audit-logs")

	ev := events.Event{Type: events.TypeProposalApproved, ProposalID: 7}
	require.NoError(t, p.Publish(context.Background(), ev))

	decoded, err := events.Decode(ch.records[0].Value)
	require.NoError(t, err)
	assert.NotEmpty(t, decoded.ID)
	assert.False(t, decoded.At.IsZero())
}

func TestPublishReportsFailureButAttemptsBothWrites(t *testing.T) {
	ch := &fakeChannel{failOn: map[string]error{"proposal-events": errors.New("partition leader gone")}}
	p := New(ch, "proposal-events", "audit-logs")

	err := p.Publish(context.Background(), events.New(events.TypeStepApproved, 1, events.StepApproved{Role: "LEGAL", Approver: "a", NextStep: 1}))

	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodePublish))
	assert.Len(t, ch.records, 2, "audit write still attempted after event write failed")
}

func TestPublishAuditFailureAlsoSurfaces(t *testing.T) {
	ch := &fakeChannel{failOn: map[string]error{"audit-logs": errors.New("timeout")}}
	p := New(ch, "proposal-events", "audit-logs")

	err := p.Publish(context.Background(), events.New(events.TypeProposalRejected, 2, events.ProposalRejected{Role: "LEGAL", Approver: "d", Reason: "r"}))

	assert.True(t, dErrors.Is(err, dErrors.CodePublish))
}
