// Package service owns the proposal state machine:
//
//	DRAFT -> Submit -> UNDER_REVIEW
//	Approve/Reject step by step -> APPROVED/REJECTED
//
// Every valid transition persists first and then emits exactly one domain
// event. If the publish fails after the commit, the publish error surfaces
// to the caller; the committed state stands (no outbox, by decision recorded
// in DESIGN.md).
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"ipm/internal/platform/metrics"
	"ipm/internal/proposal/events"
	"ipm/internal/proposal/models"
	"ipm/internal/proposal/store"
	dErrors "ipm/pkg/domainerrors"
	"ipm/pkg/platform/sentinel"
)

// Publisher emits one domain event per committed transition.
type Publisher interface {
	Publish(ctx context.Context, ev events.Event) error
}

// Config carries workflow configuration, passed in explicitly at
// construction.
type Config struct {
	// DefaultChain is used when Submit receives no override chain.
	DefaultChain []string
}

// Workflow is the approval workflow engine. All proposal mutation goes
// through it.
type Workflow struct {
	store     store.Store
	publisher Publisher
	cfg       Config
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	now       func() time.Time
}

// Option configures the Workflow.
type Option func(*Workflow)

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Workflow) { w.metrics = m }
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(w *Workflow) { w.now = now }
}

// NewWorkflow wires the engine. The default chain must be non-empty or
// Submit without an override would produce a proposal with no steps.
func NewWorkflow(st store.Store, pub Publisher, cfg Config, logger *slog.Logger, opts ...Option) *Workflow {
	w := &Workflow{
		store:     st,
		publisher: pub,
		cfg:       cfg,
		logger:    logger,
		tracer:    otel.Tracer("ipm/proposal/workflow"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Create produces a new DRAFT proposal with no steps.
func (w *Workflow) Create(ctx context.Context, req models.CreateProposalRequest) (*models.Proposal, error) {
	ctx, span := w.tracer.Start(ctx, "workflow.create")
	defer span.End()

	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := w.now().UTC()
	p := &models.Proposal{
		Title:         req.Title,
		ApplicantName: req.ApplicantName,
		Amount:        req.Amount,
		Description:   req.Description,
		Status:        models.StatusDraft,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := w.store.Create(ctx, p); err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "create proposal", err)
	}

	if w.metrics != nil {
		w.metrics.ProposalsCreated.Inc()
	}
	w.logger.InfoContext(ctx, "proposal created", "proposal_id", p.ID, "applicant", p.ApplicantName)
	return p, nil
}

// Submit moves a DRAFT proposal into review. The chain override (trimmed,
// order preserved) replaces the step sequence; when absent the configured
// default chain applies. Emits PROPOSAL_SUBMITTED.
func (w *Workflow) Submit(ctx context.Context, id int64, chain []string) (*models.Proposal, error) {
	ctx, span := w.tracer.Start(ctx, "workflow.submit")
	defer span.End()

	chain = models.NormalizeChain(chain)
	if len(chain) == 0 {
		chain = w.cfg.DefaultChain
	}
	if len(chain) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "no approval chain configured")
	}

	var ev events.Event
	p, err := w.store.Update(ctx, id, func(p *models.Proposal) error {
		if p.Status != models.StatusDraft {
			return dErrors.Newf(dErrors.CodeInvalidState, "only DRAFT proposals can be submitted; status=%s", p.Status)
		}

		now := w.now().UTC()
		p.Steps = make([]models.ApprovalStep, len(chain))
		for i, role := range chain {
			p.Steps[i] = models.ApprovalStep{StepOrder: i, Role: role, Decision: models.DecisionPending}
		}
		p.Status = models.StatusUnderReview
		p.CurrentStepIndex = 0
		p.SubmittedAt = &now
		p.UpdatedAt = now

		ev = events.New(events.TypeProposalSubmitted, p.ID, events.Submitted{Chain: chain})
		return nil
	})
	if err != nil {
		return nil, w.updateError(id, err)
	}

	return w.emit(ctx, p, ev)
}

// Approve records an approval on the current step. On the last step the
// proposal becomes APPROVED (emitting PROPOSAL_APPROVED); otherwise the step
// pointer advances (emitting STEP_APPROVED). Exactly one event per call.
func (w *Workflow) Approve(ctx context.Context, id int64, approver, comments string) (*models.Proposal, error) {
	ctx, span := w.tracer.Start(ctx, "workflow.approve")
	defer span.End()

	if err := (models.DecisionRequest{Approver: approver}).Validate(); err != nil {
		return nil, err
	}

	var ev events.Event
	p, err := w.store.Update(ctx, id, func(p *models.Proposal) error {
		step, err := w.currentStep(p)
		if err != nil {
			return err
		}

		now := w.now().UTC()
		step.Approver = approver
		step.Comments = comments
		step.Decision = models.DecisionApproved
		step.DecidedAt = &now
		p.UpdatedAt = now

		if p.CurrentStepIndex >= len(p.Steps)-1 {
			p.Status = models.StatusApproved
			ev = events.New(events.TypeProposalApproved, p.ID,
				events.ProposalApproved{Role: step.Role, Approver: approver})
		} else {
			p.CurrentStepIndex++
			ev = events.New(events.TypeStepApproved, p.ID,
				events.StepApproved{Role: step.Role, Approver: approver, NextStep: p.CurrentStepIndex})
		}
		return nil
	})
	if err != nil {
		return nil, w.updateError(id, err)
	}

	return w.emit(ctx, p, ev)
}

// Reject records a rejection on the current step and finalizes the proposal
// as REJECTED. Later steps stay PENDING and are never touched again. Emits
// PROPOSAL_REJECTED.
func (w *Workflow) Reject(ctx context.Context, id int64, approver, comments string) (*models.Proposal, error) {
	ctx, span := w.tracer.Start(ctx, "workflow.reject")
	defer span.End()

	if err := (models.DecisionRequest{Approver: approver}).Validate(); err != nil {
		return nil, err
	}

	var ev events.Event
	p, err := w.store.Update(ctx, id, func(p *models.Proposal) error {
		step, err := w.currentStep(p)
		if err != nil {
			return err
		}

		now := w.now().UTC()
		step.Approver = approver
		step.Comments = comments
		step.Decision = models.DecisionRejected
		step.DecidedAt = &now
		p.Status = models.StatusRejected
		p.UpdatedAt = now

		ev = events.New(events.TypeProposalRejected, p.ID,
			events.ProposalRejected{Role: step.Role, Approver: approver, Reason: comments})
		return nil
	})
	if err != nil {
		return nil, w.updateError(id, err)
	}

	return w.emit(ctx, p, ev)
}

// Get returns a proposal snapshot.
func (w *Workflow) Get(ctx context.Context, id int64) (*models.Proposal, error) {
	p, err := w.store.Get(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "proposal not found: %d", id)
	}
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "get proposal", err)
	}
	return p, nil
}

// List returns a page of proposals, optionally filtered by status. Page is
// zero-based.
func (w *Workflow) List(ctx context.Context, status *models.Status, page, size int) ([]*models.Proposal, int, error) {
	if status != nil && !status.Valid() {
		return nil, 0, dErrors.Newf(dErrors.CodeValidation, "unknown status %q", *status)
	}
	if page < 0 {
		page = 0
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	items, total, err := w.store.List(ctx, store.ListFilter{Status: status, Limit: size, Offset: page * size})
	if err != nil {
		return nil, 0, dErrors.Wrap(dErrors.CodeInternal, "list proposals", err)
	}
	return items, total, nil
}

// currentStep validates the UNDER_REVIEW preconditions and returns a pointer
// into p.Steps for the step the pointer designates. Step evaluation is
// strictly sequential: only the step at CurrentStepIndex may be decided.
func (w *Workflow) currentStep(p *models.Proposal) (*models.ApprovalStep, error) {
	if p.Status != models.StatusUnderReview {
		return nil, dErrors.Newf(dErrors.CodeInvalidState, "proposal is not UNDER_REVIEW; status=%s", p.Status)
	}
	if len(p.Steps) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidState, "no approval steps configured")
	}
	idx := p.CurrentStepIndex
	if idx < 0 || idx >= len(p.Steps) {
		return nil, dErrors.Newf(dErrors.CodeInvalidState, "invalid current step index=%d", idx)
	}
	step := &p.Steps[idx]
	if step.Decision != models.DecisionPending {
		return nil, dErrors.New(dErrors.CodeInvalidState, "current step already decided")
	}
	return step, nil
}

// emit publishes the transition event after the state change committed. A
// publish failure leaves the committed state in place and surfaces to the
// caller; this inconsistency window is deliberate.
func (w *Workflow) emit(ctx context.Context, p *models.Proposal, ev events.Event) (*models.Proposal, error) {
	if err := w.publisher.Publish(ctx, ev); err != nil {
		w.logger.ErrorContext(ctx, "state committed but event publish failed",
			"proposal_id", p.ID,
			"event_type", ev.Type,
			"error", err,
		)
		return nil, err
	}
	w.logger.InfoContext(ctx, "transition", "proposal_id", p.ID, "status", p.Status, "event", ev.Type)
	return p, nil
}

// updateError translates store-level errors on mutation paths. An unknown id
// on submit/approve/reject is a bad request, matching the external contract.
func (w *Workflow) updateError(id int64, err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Newf(dErrors.CodeBadRequest, "proposal not found: %d", id)
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(dErrors.CodeInternal, "update proposal", err)
}
