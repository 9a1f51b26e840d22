package audit

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ipm/internal/platform/kafka/consumer"
	"ipm/internal/proposal/events"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRecorderPersistsEventAsRow(t *testing.T) {
	store := NewMemoryStore()
	rec := NewRecorder(store, discard())

	ev := events.New(events.TypeStepApproved, 7, events.StepApproved{Role: "PEER_REVIEW", Approver: "alice", NextStep: 1})
	require.NoError(t, rec.Record(context.Background(), ev))

	page, err := rec.List(context.Background(), nil, 0, 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	entry := page.Items[0]
	assert.Equal(t, ev.ID, entry.EventID)
	assert.Equal(t, "STEP_APPROVED", entry.EventType)
	assert.Equal(t, int64(7), entry.ProposalID)
	assert.Contains(t, entry.PayloadJSON, `"approver":"alice"`)
}

func TestRecorderToleratesRedelivery(t *testing.T) {
	store := NewMemoryStore()
	rec := NewRecorder(store, discard())
	ev := events.New(events.TypeProposalApproved, 3, events.ProposalApproved{Role: "COMPLIANCE", Approver: "carol"})

	require.NoError(t, rec.Record(context.Background(), ev))
	require.NoError(t, rec.Record(context.Background(), ev), "redelivery must not fail")

	page, err := rec.List(context.Background(), nil, 0, 10)
	require.NoError(t, err)
	assert.Len(t, page.Items, 2, "duplicate rows are acceptable")
}

func TestRecorderNilPayload(t *testing.T) {
	store := NewMemoryStore()
	rec := NewRecorder(store, discard())

	require.NoError(t, rec.Record(context.Background(), events.New(events.TypeProposalSubmitted, 1, nil)))

	page, err := rec.List(context.Background(), nil, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, "{}", page.Items[0].PayloadJSON)
}

func TestEventHandlerDecodesAndRecords(t *testing.T) {
	store := NewMemoryStore()
	h := NewEventHandler(NewRecorder(store, discard()))

	ev := events.New(events.TypeProposalRejected, 9, events.ProposalRejected{Role: "LEGAL", Approver: "dave", Reason: "r"})
	data, err := events.Encode(ev)
	require.NoError(t, err)

	err = h.Handle(context.Background(), &consumer.Message{Topic: "proposal-events", Value: data})
	require.NoError(t, err)

	page, err := NewRecorder(store, discard()).List(context.Background(), nil, 0, 10)
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
}

func TestEventHandlerReturnsErrorOnMalformedPayload(t *testing.T) {
	h := NewEventHandler(NewRecorder(NewMemoryStore(), discard()))

	err := h.Handle(context.Background(), &consumer.Message{Value: []byte("not json")})

	assert.Error(t, err, "malformed payloads must take the retry/dead-letter path")
}

func TestListFilterByProposalAndPaging(t *testing.T) {
	store := NewMemoryStore()
	rec := NewRecorder(store, discard())
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, rec.Record(ctx, events.New(events.TypeStepApproved, 1, nil)))
	}
	require.NoError(t, rec.Record(ctx, events.New(events.TypeStepApproved, 2, nil)))

	one := int64(1)
	page, err := rec.List(ctx, &one, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Len(t, page.Items, 1)
}

func TestAuditReadAPI(t *testing.T) {
	store := NewMemoryStore()
	rec := NewRecorder(store, discard())
	require.NoError(t, rec.Record(context.Background(), events.New(events.TypeProposalSubmitted, 5, events.Submitted{Chain: []string{"LEGAL"}})))

	r := chi.NewRouter()
	NewHandler(rec, discard()).Register(r)

	req := httptest.NewRequest(http.MethodGet, "/audit?proposalId=5", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var page Page
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, 1, page.Total)

	req = httptest.NewRequest(http.MethodGet, "/audit?proposalId=abc", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
