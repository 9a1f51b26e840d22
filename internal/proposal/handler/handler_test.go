package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"ipm/internal/proposal/handler/mocks"
	"ipm/internal/proposal/models"
	dErrors "ipm/pkg/domainerrors"
	"ipm/pkg/testutil"
)

func newTestRouter(t *testing.T) (chi.Router, *mocks.MockService) {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	mockService := mocks.NewMockService(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	h := New(mockService, logger, "")
	r := chi.NewRouter()
	h.Register(r)
	return r, mockService
}

func doJSON(t *testing.T, r chi.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return testutil.DoRequest(r, testutil.NewJSONRequest(t, method, path, body))
}

func TestHandleCreate(t *testing.T) {
	r, svc := newTestRouter(t)
	svc.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ any, req models.CreateProposalRequest) (*models.Proposal, error) {
			assert.Equal(t, "Roof replacement", req.Title)
			assert.Equal(t, "120000", req.Amount.String())
			return &models.Proposal{ID: 1, Title: req.Title, Status: models.StatusDraft, Amount: req.Amount}, nil
		})

	w := doJSON(t, r, http.MethodPost, "/proposals", map[string]any{
		"title":         "Roof replacement",
		"applicantName": "Acme Corp",
		"amount":        "120000.00",
		"description":   "full roof replacement",
	})

	testutil.AssertStatus(t, w, http.StatusCreated)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, float64(1), resp["id"])
	assert.Equal(t, "DRAFT", resp["status"])
}

func TestHandleCreateValidationError(t *testing.T) {
	r, svc := newTestRouter(t)
	svc.EXPECT().Create(gomock.Any(), gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeValidation, "title must not be blank"))

	w := doJSON(t, r, http.MethodPost, "/proposals", map[string]any{"applicantName": "Acme"})

	testutil.AssertStatusAndError(t, w, http.StatusBadRequest, "validation_error")
}

func TestHandleSubmitPassesChain(t *testing.T) {
	r, svc := newTestRouter(t)
	svc.EXPECT().Submit(gomock.Any(), int64(5), []string{"LEGAL"}).
		Return(&models.Proposal{ID: 5, Status: models.StatusUnderReview}, nil)

	w := doJSON(t, r, http.MethodPost, "/proposals/5/submit", map[string]any{
		"approvalChain": []string{"LEGAL"},
	})

	testutil.AssertStatus(t, w, http.StatusOK)
}

func TestHandleSubmitWithoutBodyUsesDefaultChain(t *testing.T) {
	r, svc := newTestRouter(t)
	svc.EXPECT().Submit(gomock.Any(), int64(5), nil).
		Return(&models.Proposal{ID: 5, Status: models.StatusUnderReview}, nil)

	w := testutil.DoRequest(r, testutil.NewRequest(t, http.MethodPost, "/proposals/5/submit"))

	testutil.AssertStatus(t, w, http.StatusOK)
}

func TestHandleApprove(t *testing.T) {
	r, svc := newTestRouter(t)
	svc.EXPECT().Approve(gomock.Any(), int64(7), "alice", "lgtm").
		Return(&models.Proposal{ID: 7, Status: models.StatusUnderReview, CurrentStepIndex: 1}, nil)

	w := doJSON(t, r, http.MethodPost, "/proposals/7/approve", map[string]any{
		"approver": "alice",
		"comments": "lgtm",
	})

	testutil.AssertStatus(t, w, http.StatusOK)
}

func TestHandleRejectConflictOnDecidedStep(t *testing.T) {
	r, svc := newTestRouter(t)
	svc.EXPECT().Reject(gomock.Any(), int64(7), "dave", "no").
		Return(nil, dErrors.New(dErrors.CodeInvalidState, "current step already decided"))

	w := doJSON(t, r, http.MethodPost, "/proposals/7/reject", map[string]any{
		"approver": "dave",
		"comments": "no",
	})

	testutil.AssertStatusAndError(t, w, http.StatusConflict, "invalid_state")
}

func TestHandlePublishErrorMapsToBadGateway(t *testing.T) {
	r, svc := newTestRouter(t)
	svc.EXPECT().Approve(gomock.Any(), int64(7), "alice", "").
		Return(nil, dErrors.New(dErrors.CodePublish, "publish proposal event"))

	w := doJSON(t, r, http.MethodPost, "/proposals/7/approve", map[string]any{"approver": "alice"})

	testutil.AssertStatusAndError(t, w, http.StatusBadGateway, "publish_error")
}

func TestHandleGetNotFound(t *testing.T) {
	r, svc := newTestRouter(t)
	svc.EXPECT().Get(gomock.Any(), int64(404)).
		Return(nil, dErrors.New(dErrors.CodeNotFound, "proposal not found: 404"))

	w := testutil.DoRequest(r, testutil.NewRequest(t, http.MethodGet, "/proposals/404"))
	testutil.AssertStatus(t, w, http.StatusNotFound)
}

func TestHandleGetInvalidID(t *testing.T) {
	r, _ := newTestRouter(t)
	w := testutil.DoRequest(r, testutil.NewRequest(t, http.MethodGet, "/proposals/abc"))
	testutil.AssertStatusAndError(t, w, http.StatusBadRequest, "bad_request")
}

func TestHandleListWithStatusFilter(t *testing.T) {
	r, svc := newTestRouter(t)
	underReview := models.StatusUnderReview
	svc.EXPECT().List(gomock.Any(), &underReview, 1, 10).
		Return([]*models.Proposal{{ID: 2, Status: underReview, Amount: decimal.Zero}}, 11, nil)

	w := testutil.DoRequest(r, testutil.NewRequest(t, http.MethodGet, "/proposals?status=UNDER_REVIEW&page=1&size=10"))

	testutil.AssertStatus(t, w, http.StatusOK)
	resp := testutil.UnmarshalResponse[models.ListResponse](t, w)
	assert.Equal(t, 11, resp.Total)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, int64(2), resp.Items[0].ID)
}

func TestRejectsNonJSONContentType(t *testing.T) {
	r, _ := newTestRouter(t)
	req := testutil.NewRequestWithBody(t, http.MethodPost, "/proposals", "title=x")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := testutil.DoRequest(r, req)

	testutil.AssertStatus(t, w, http.StatusUnsupportedMediaType)
}
