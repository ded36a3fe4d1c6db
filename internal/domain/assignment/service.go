package assignment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rpggio/caseload/internal/cache"
	"github.com/rpggio/caseload/internal/domain/client"
	"github.com/rpggio/caseload/internal/domain/lifecycle"
	"github.com/rpggio/caseload/internal/domain/quota"
	"github.com/rpggio/caseload/internal/domain/therapist"
	"github.com/rpggio/caseload/internal/events"
)

const (
	opAssign    = "assign"
	opUnassign  = "unassign"
	opTransfer  = "transfer"
	opStartOver = "start_over"
	opAdvance   = "advance"

	autoConsultationReason = "consultation starts on assignment"
)

// Deps are the collaborators of the coordinator. Quota, Cache and Events may
// be nil.
type Deps struct {
	Clients     ClientStore
	Therapists  TherapistStore
	Assignments Repository
	Quota       QuotaGate
	Cache       Cache
	Events      Publisher
}

// Service is the single entry point for therapist-assignment mutations.
// Operations on one client never interleave; a second request while one is
// in flight fails with ErrConcurrentModification.
type Service struct {
	clients     ClientStore
	therapists  TherapistStore
	assignments Repository
	quota       QuotaGate
	cache       Cache
	events      Publisher
	cfg         Config
	logger      *slog.Logger
	guard       *clientGuard
	now         func() time.Time
}

// NewService creates an assignment coordinator.
func NewService(deps Deps, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	c := deps.Cache
	if c == nil {
		c = cache.New(logger)
	}
	return &Service{
		clients:     deps.Clients,
		therapists:  deps.Therapists,
		assignments: deps.Assignments,
		quota:       deps.Quota,
		cache:       c,
		events:      deps.Events,
		cfg:         cfg,
		logger:      logger,
		guard:       newClientGuard(),
		now:         time.Now,
	}
}

// Assign gives an unassigned client a therapist. The client moves to
// Assigned, and on to Consultation when auto consultation applies.
func (s *Service) Assign(ctx context.Context, clinicID string, req AssignRequest) (*Result, error) {
	if blank(clinicID, req.ClientID, req.TherapistID) {
		return nil, s.fail(ctx, opAssign, clinicID, req.ClientID, req.TherapistID, ErrInvalidInput, false)
	}
	release, ok := s.guard.acquire(clinicID, req.ClientID)
	if !ok {
		return nil, s.fail(ctx, opAssign, clinicID, req.ClientID, req.TherapistID, ErrConcurrentModification, false)
	}
	defer release()

	timeout := s.timeout(req.Timeout)
	cl, err := s.loadClient(ctx, clinicID, req.ClientID, timeout)
	if err != nil {
		return nil, s.fail(ctx, opAssign, clinicID, req.ClientID, req.TherapistID, err, false)
	}
	if err := lifecycle.ValidateTransition(cl.Status, lifecycle.StatusAssigned); err != nil {
		return nil, s.fail(ctx, opAssign, clinicID, cl.ID, req.TherapistID, err, false)
	}
	th, err := s.loadAssignableTherapist(ctx, clinicID, req.TherapistID, timeout)
	if err != nil {
		return nil, s.fail(ctx, opAssign, clinicID, cl.ID, req.TherapistID, err, false)
	}

	auto := s.cfg.AutoConsultation
	if req.AutoConsultation != nil {
		auto = *req.AutoConsultation
	}
	target := lifecycle.StatusAssigned
	if auto {
		if err := lifecycle.ValidateTransition(lifecycle.StatusAssigned, lifecycle.StatusConsultation); err != nil {
			return nil, s.fail(ctx, opAssign, clinicID, cl.ID, th.ID, err, false)
		}
		target = lifecycle.StatusConsultation
	}

	slot, err := s.reserve(ctx, clinicID, quota.MetricClientsToday, timeout)
	if err != nil {
		return nil, s.fail(ctx, opAssign, clinicID, cl.ID, th.ID, err, false)
	}

	patch := client.Patch{Status: &target, TherapistID: &th.ID}
	snap, err := s.begin(cl, patch)
	if err != nil {
		s.unreserve(ctx, opAssign, clinicID, slot)
		return nil, s.fail(ctx, opAssign, clinicID, cl.ID, th.ID, err, false)
	}

	asg := s.newAssignment(clinicID, cl.ID, th.ID, nil, "", req.Notes)
	if err := s.createAssignment(ctx, clinicID, asg, timeout); err != nil {
		s.rollback(opAssign, snap)
		s.unreserve(ctx, opAssign, clinicID, slot)
		return nil, s.fail(ctx, opAssign, clinicID, cl.ID, th.ID, err, true)
	}
	updated, err := s.updateClient(ctx, clinicID, cl.ID, patch, timeout)
	if err != nil {
		return nil, s.abort(ctx, opAssign, clinicID, cl, th.ID, asg, snap, slot, err, timeout)
	}
	s.confirm(opAssign, snap, updated)

	s.transitioned(ctx, clinicID, cl.ID, cl.Status, lifecycle.StatusAssigned, lifecycle.TriggerAdvance, "")
	if auto {
		s.transitioned(ctx, clinicID, cl.ID, lifecycle.StatusAssigned, lifecycle.StatusConsultation, lifecycle.TriggerAdvance, autoConsultationReason)
	}
	s.succeeded(ctx, clinicID, events.AssignmentSucceeded{
		Op:           opAssign,
		ClientID:     cl.ID,
		TherapistID:  th.ID,
		AssignmentID: asg.ID,
	})
	return &Result{Client: updated, Assignment: asg}, nil
}

// Unassign clears the client's therapist and returns it to New. It never
// consumes quota.
func (s *Service) Unassign(ctx context.Context, clinicID string, req UnassignRequest) (*Result, error) {
	if blank(clinicID, req.ClientID) {
		return nil, s.fail(ctx, opUnassign, clinicID, req.ClientID, "", ErrInvalidInput, false)
	}
	release, ok := s.guard.acquire(clinicID, req.ClientID)
	if !ok {
		return nil, s.fail(ctx, opUnassign, clinicID, req.ClientID, "", ErrConcurrentModification, false)
	}
	defer release()

	timeout := s.timeout(req.Timeout)
	cl, err := s.loadClient(ctx, clinicID, req.ClientID, timeout)
	if err != nil {
		return nil, s.fail(ctx, opUnassign, clinicID, req.ClientID, "", err, false)
	}
	if err := lifecycle.ValidateRelease(cl.Status); err != nil {
		return nil, s.fail(ctx, opUnassign, clinicID, cl.ID, cl.TherapistID(), err, false)
	}

	status := lifecycle.StatusNew
	patch := client.Patch{Status: &status, ClearTherapist: true}
	snap, err := s.begin(cl, patch)
	if err != nil {
		return nil, s.fail(ctx, opUnassign, clinicID, cl.ID, cl.TherapistID(), err, false)
	}
	updated, err := s.updateClient(ctx, clinicID, cl.ID, patch, timeout)
	if err != nil {
		s.rollback(opUnassign, snap)
		return nil, s.fail(ctx, opUnassign, clinicID, cl.ID, cl.TherapistID(), err, true)
	}
	s.confirm(opUnassign, snap, updated)

	prev := cl.TherapistID()
	s.transitioned(ctx, clinicID, cl.ID, cl.Status, lifecycle.StatusNew, lifecycle.TriggerRelease, req.Reason)
	s.succeeded(ctx, clinicID, events.AssignmentSucceeded{
		Op:                  opUnassign,
		ClientID:            cl.ID,
		PreviousTherapistID: &prev,
		Reason:              req.Reason,
	})
	return &Result{Client: updated}, nil
}

// Transfer moves the client of an existing assignment to a new therapist. A
// new assignment record is created and the client restarts consultation.
func (s *Service) Transfer(ctx context.Context, clinicID string, req TransferRequest) (*Result, error) {
	if blank(clinicID, req.AssignmentID, req.NewTherapistID) {
		return nil, s.fail(ctx, opTransfer, clinicID, "", req.NewTherapistID, ErrInvalidInput, false)
	}
	if strings.TrimSpace(req.Reason) == "" {
		return nil, s.fail(ctx, opTransfer, clinicID, "", req.NewTherapistID, ErrMissingReason, false)
	}

	timeout := s.timeout(req.Timeout)
	prior, err := s.loadAssignment(ctx, clinicID, req.AssignmentID, timeout)
	if err != nil {
		return nil, s.fail(ctx, opTransfer, clinicID, "", req.NewTherapistID, err, false)
	}

	release, ok := s.guard.acquire(clinicID, prior.ClientID)
	if !ok {
		return nil, s.fail(ctx, opTransfer, clinicID, prior.ClientID, req.NewTherapistID, ErrConcurrentModification, false)
	}
	defer release()

	cl, err := s.loadClient(ctx, clinicID, prior.ClientID, timeout)
	if err != nil {
		return nil, s.fail(ctx, opTransfer, clinicID, prior.ClientID, req.NewTherapistID, err, false)
	}
	if err := lifecycle.ValidateReassignment(cl.Status, req.Reason); err != nil {
		return nil, s.fail(ctx, opTransfer, clinicID, cl.ID, req.NewTherapistID, err, false)
	}
	if cl.TherapistID() != prior.TherapistID {
		err := fmt.Errorf("%w: assignment %s is no longer current", ErrConcurrentModification, prior.ID)
		return nil, s.fail(ctx, opTransfer, clinicID, cl.ID, req.NewTherapistID, err, false)
	}
	if prior.TherapistID == req.NewTherapistID {
		return nil, s.fail(ctx, opTransfer, clinicID, cl.ID, req.NewTherapistID, ErrSameTherapist, false)
	}
	th, err := s.loadAssignableTherapist(ctx, clinicID, req.NewTherapistID, timeout)
	if err != nil {
		return nil, s.fail(ctx, opTransfer, clinicID, cl.ID, req.NewTherapistID, err, false)
	}

	status := lifecycle.StatusConsultation
	patch := client.Patch{Status: &status, TherapistID: &th.ID}
	snap, err := s.begin(cl, patch)
	if err != nil {
		return nil, s.fail(ctx, opTransfer, clinicID, cl.ID, th.ID, err, false)
	}

	previous := prior.TherapistID
	asg := s.newAssignment(clinicID, cl.ID, th.ID, &previous, req.Reason, req.Notes)
	if err := s.createAssignment(ctx, clinicID, asg, timeout); err != nil {
		s.rollback(opTransfer, snap)
		return nil, s.fail(ctx, opTransfer, clinicID, cl.ID, th.ID, err, true)
	}
	updated, err := s.updateClient(ctx, clinicID, cl.ID, patch, timeout)
	if err != nil {
		return nil, s.abort(ctx, opTransfer, clinicID, cl, th.ID, asg, snap, nil, err, timeout)
	}
	s.confirm(opTransfer, snap, updated)

	s.transitioned(ctx, clinicID, cl.ID, cl.Status, lifecycle.StatusConsultation, lifecycle.TriggerReassign, req.Reason)
	s.succeeded(ctx, clinicID, events.AssignmentSucceeded{
		Op:                  opTransfer,
		ClientID:            cl.ID,
		TherapistID:         th.ID,
		PreviousTherapistID: &previous,
		AssignmentID:        asg.ID,
		Reason:              req.Reason,
	})
	return &Result{Client: updated, Assignment: asg}, nil
}

// StartOver reassigns a client to a new therapist and then forces the
// client back to consultation. The two steps run in order; when the second
// fails, the first is compensated so the client ends exactly as it started.
func (s *Service) StartOver(ctx context.Context, clinicID string, req StartOverRequest) (*Result, error) {
	if blank(clinicID, req.ClientID, req.NewTherapistID) {
		return nil, s.fail(ctx, opStartOver, clinicID, req.ClientID, req.NewTherapistID, ErrInvalidInput, false)
	}
	if strings.TrimSpace(req.Reason) == "" {
		return nil, s.fail(ctx, opStartOver, clinicID, req.ClientID, req.NewTherapistID, ErrMissingReason, false)
	}
	release, ok := s.guard.acquire(clinicID, req.ClientID)
	if !ok {
		return nil, s.fail(ctx, opStartOver, clinicID, req.ClientID, req.NewTherapistID, ErrConcurrentModification, false)
	}
	defer release()

	timeout := s.timeout(req.Timeout)
	cl, err := s.loadClient(ctx, clinicID, req.ClientID, timeout)
	if err != nil {
		return nil, s.fail(ctx, opStartOver, clinicID, req.ClientID, req.NewTherapistID, err, false)
	}
	if err := lifecycle.ValidateReassignment(cl.Status, req.Reason); err != nil {
		return nil, s.fail(ctx, opStartOver, clinicID, cl.ID, req.NewTherapistID, err, false)
	}
	if cl.TherapistID() == req.NewTherapistID {
		return nil, s.fail(ctx, opStartOver, clinicID, cl.ID, req.NewTherapistID, ErrSameTherapist, false)
	}
	th, err := s.loadAssignableTherapist(ctx, clinicID, req.NewTherapistID, timeout)
	if err != nil {
		return nil, s.fail(ctx, opStartOver, clinicID, cl.ID, req.NewTherapistID, err, false)
	}

	// An unassigned client takes the assign path and consumes a daily slot.
	fresh := cl.AssignedTherapistID == nil
	phase1 := client.Patch{TherapistID: &th.ID}
	var slot quota.Release
	if fresh {
		if err := lifecycle.ValidateTransition(cl.Status, lifecycle.StatusAssigned); err != nil {
			return nil, s.fail(ctx, opStartOver, clinicID, cl.ID, th.ID, err, false)
		}
		slot, err = s.reserve(ctx, clinicID, quota.MetricClientsToday, timeout)
		if err != nil {
			return nil, s.fail(ctx, opStartOver, clinicID, cl.ID, th.ID, err, false)
		}
		assigned := lifecycle.StatusAssigned
		phase1.Status = &assigned
	}
	consultation := lifecycle.StatusConsultation
	phase2 := client.Patch{Status: &consultation}

	snap, err := s.begin(cl, client.Patch{Status: &consultation, TherapistID: &th.ID})
	if err != nil {
		s.unreserve(ctx, opStartOver, clinicID, slot)
		return nil, s.fail(ctx, opStartOver, clinicID, cl.ID, th.ID, err, false)
	}

	var previous *string
	if !fresh {
		prev := cl.TherapistID()
		previous = &prev
	}
	asg := s.newAssignment(clinicID, cl.ID, th.ID, previous, req.Reason, req.Notes)
	if err := s.createAssignment(ctx, clinicID, asg, timeout); err != nil {
		s.rollback(opStartOver, snap)
		s.unreserve(ctx, opStartOver, clinicID, slot)
		return nil, s.fail(ctx, opStartOver, clinicID, cl.ID, th.ID, err, true)
	}
	if _, err := s.updateClient(ctx, clinicID, cl.ID, phase1, timeout); err != nil {
		return nil, s.abort(ctx, opStartOver, clinicID, cl, th.ID, asg, snap, slot, err, timeout)
	}

	updated, err := s.updateClient(ctx, clinicID, cl.ID, phase2, timeout)
	if err != nil {
		return nil, s.abort(ctx, opStartOver, clinicID, cl, th.ID, asg, snap, slot, err, timeout)
	}
	s.confirm(opStartOver, snap, updated)

	if fresh {
		s.transitioned(ctx, clinicID, cl.ID, cl.Status, lifecycle.StatusAssigned, lifecycle.TriggerAdvance, "")
		s.transitioned(ctx, clinicID, cl.ID, lifecycle.StatusAssigned, lifecycle.StatusConsultation, lifecycle.TriggerReassign, req.Reason)
	} else {
		s.transitioned(ctx, clinicID, cl.ID, cl.Status, lifecycle.StatusConsultation, lifecycle.TriggerReassign, req.Reason)
	}
	s.succeeded(ctx, clinicID, events.AssignmentSucceeded{
		Op:                  opStartOver,
		ClientID:            cl.ID,
		TherapistID:         th.ID,
		PreviousTherapistID: previous,
		AssignmentID:        asg.ID,
		Reason:              req.Reason,
	})
	return &Result{Client: updated, Assignment: asg}, nil
}

// Advance moves an assigned client one step forward along the workflow.
func (s *Service) Advance(ctx context.Context, clinicID string, req AdvanceRequest) (*Result, error) {
	if blank(clinicID, req.ClientID) {
		return nil, s.fail(ctx, opAdvance, clinicID, req.ClientID, "", ErrInvalidInput, false)
	}
	release, ok := s.guard.acquire(clinicID, req.ClientID)
	if !ok {
		return nil, s.fail(ctx, opAdvance, clinicID, req.ClientID, "", ErrConcurrentModification, false)
	}
	defer release()

	timeout := s.timeout(req.Timeout)
	cl, err := s.loadClient(ctx, clinicID, req.ClientID, timeout)
	if err != nil {
		return nil, s.fail(ctx, opAdvance, clinicID, req.ClientID, "", err, false)
	}
	if cl.AssignedTherapistID == nil {
		// Leaving New needs a therapist; that path is Assign.
		err := &lifecycle.TransitionError{From: cl.Status, To: req.To, Trigger: lifecycle.TriggerAdvance}
		return nil, s.fail(ctx, opAdvance, clinicID, cl.ID, "", err, false)
	}
	if err := lifecycle.ValidateTransition(cl.Status, req.To); err != nil {
		return nil, s.fail(ctx, opAdvance, clinicID, cl.ID, cl.TherapistID(), err, false)
	}

	to := req.To
	patch := client.Patch{Status: &to}
	snap, err := s.begin(cl, patch)
	if err != nil {
		return nil, s.fail(ctx, opAdvance, clinicID, cl.ID, cl.TherapistID(), err, false)
	}
	updated, err := s.updateClient(ctx, clinicID, cl.ID, patch, timeout)
	if err != nil {
		s.rollback(opAdvance, snap)
		return nil, s.fail(ctx, opAdvance, clinicID, cl.ID, cl.TherapistID(), err, true)
	}
	s.confirm(opAdvance, snap, updated)

	s.transitioned(ctx, clinicID, cl.ID, cl.Status, to, lifecycle.TriggerAdvance, req.Reason)
	return &Result{Client: updated}, nil
}

// History returns the assignment records of a client, oldest first.
func (s *Service) History(ctx context.Context, clinicID, clientID string) ([]Assignment, error) {
	if blank(clinicID, clientID) {
		return nil, ErrInvalidInput
	}
	list, err := s.assignments.ListByClient(ctx, clinicID, clientID)
	if err != nil {
		return nil, fmt.Errorf("listing assignments: %w", err)
	}
	return list, nil
}

func (s *Service) timeout(requested time.Duration) time.Duration {
	if requested > 0 {
		return requested
	}
	return s.cfg.CallTimeout
}

// call runs fn under the per-call deadline. A failure that coincides with the
// deadline is reported as context.DeadlineExceeded.
func (s *Service) call(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := fn(cctx)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) && errors.Is(cctx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
	}
	return err
}

func (s *Service) loadClient(ctx context.Context, clinicID, id string, timeout time.Duration) (*client.Client, error) {
	var cl *client.Client
	err := s.call(ctx, timeout, func(ctx context.Context) error {
		var err error
		cl, err = s.clients.Get(ctx, clinicID, id)
		return err
	})
	if err != nil {
		return nil, classify("get client", err, ErrClientNotFound)
	}
	return cl, nil
}

func (s *Service) loadAssignment(ctx context.Context, clinicID, id string, timeout time.Duration) (*Assignment, error) {
	var a *Assignment
	err := s.call(ctx, timeout, func(ctx context.Context) error {
		var err error
		a, err = s.assignments.Get(ctx, clinicID, id)
		return err
	})
	if err != nil {
		return nil, classify("get assignment", err, ErrAssignmentNotFound)
	}
	return a, nil
}

func (s *Service) loadAssignableTherapist(ctx context.Context, clinicID, id string, timeout time.Duration) (*therapist.Therapist, error) {
	var th *therapist.Therapist
	err := s.call(ctx, timeout, func(ctx context.Context) error {
		var err error
		th, err = s.therapists.Get(ctx, clinicID, id)
		return err
	})
	if err != nil {
		return nil, classify("get therapist", err, ErrTherapistNotFound)
	}
	if !th.Active() {
		return nil, fmt.Errorf("%w: %s is %s", ErrTherapistNotActive, th.ID, th.ActivityStatus)
	}
	if !th.HasCapacity() {
		return nil, fmt.Errorf("%w: %s has %d/%d clients", ErrTherapistAtCapacity, th.ID, th.CurrentLoad, th.MaxClients)
	}
	return th, nil
}

// reserve takes one unit of metric for the action about to run. Without a
// gate the returned release is nil.
func (s *Service) reserve(ctx context.Context, clinicID string, metric quota.Metric, timeout time.Duration) (quota.Release, error) {
	if s.quota == nil {
		return nil, nil
	}
	var release quota.Release
	err := s.call(ctx, timeout, func(ctx context.Context) error {
		var err error
		release, err = s.quota.Reserve(ctx, clinicID, metric)
		return err
	})
	switch {
	case err == nil:
		return release, nil
	case errors.Is(err, quota.ErrQuotaExceeded), errors.Is(err, quota.ErrSubscriptionNotFound):
		return nil, err
	}
	return nil, classify("reserve quota", err, nil)
}

// unreserve gives back a unit whose action did not happen.
func (s *Service) unreserve(ctx context.Context, op, clinicID string, release quota.Release) {
	if release == nil {
		return
	}
	if err := release(context.WithoutCancel(ctx)); err != nil {
		s.logger.Warn("quota reservation not released", "op", op, "clinic_id", clinicID, "error", err)
	}
}

func (s *Service) createAssignment(ctx context.Context, clinicID string, a *Assignment, timeout time.Duration) error {
	s.logger.Debug("creating assignment", "clinic_id", clinicID, "client_id", a.ClientID, "therapist_id", a.TherapistID)
	err := s.call(ctx, timeout, func(ctx context.Context) error {
		return s.assignments.Create(ctx, clinicID, a)
	})
	if err != nil {
		return classify("create assignment", err, nil)
	}
	return nil
}

func (s *Service) updateClient(ctx context.Context, clinicID, id string, patch client.Patch, timeout time.Duration) (*client.Client, error) {
	s.logger.Debug("updating client", "clinic_id", clinicID, "client_id", id)
	var updated *client.Client
	err := s.call(ctx, timeout, func(ctx context.Context) error {
		var err error
		updated, err = s.clients.Update(ctx, clinicID, id, patch)
		return err
	})
	if err != nil {
		return nil, classify("update client", err, nil)
	}
	return updated, nil
}

// abort unwinds an operation whose client update failed after the
// assignment record was written. When compensation fails nothing more is
// undone: the assignment record and any quota reservation are kept and the
// failure is reported as not rolled back.
func (s *Service) abort(ctx context.Context, op, clinicID string, prev *client.Client, therapistID string, a *Assignment, snap *cache.Snapshot, slot quota.Release, cause error, timeout time.Duration) error {
	if err := s.compensate(ctx, op, clinicID, prev, a, timeout); err != nil {
		s.rollback(op, snap)
		return s.fail(ctx, op, clinicID, prev.ID, therapistID, fmt.Errorf("%w after %w", err, cause), false)
	}
	s.rollback(op, snap)
	s.unreserve(ctx, op, clinicID, slot)
	return s.fail(ctx, op, clinicID, prev.ID, therapistID, cause, true)
}

// compensate undoes the persisted side of a failed operation: the client's
// workflow fields go back to prev, then the uncommitted assignment record is
// removed. The record stays when the client could not be restored, so
// history still explains the persisted therapist. It runs detached from the
// caller's cancellation.
func (s *Service) compensate(ctx context.Context, op, clinicID string, prev *client.Client, a *Assignment, timeout time.Duration) error {
	ctx = context.WithoutCancel(ctx)

	err := s.call(ctx, timeout, func(ctx context.Context) error {
		_, err := s.clients.Update(ctx, clinicID, prev.ID, client.Restore(prev))
		return err
	})
	if err != nil {
		s.logger.Error("compensation failed: client not restored", "op", op, "clinic_id", clinicID, "client_id", prev.ID, "error", err)
		return fmt.Errorf("%w: client %s not restored: %w", ErrCompensationFailed, prev.ID, err)
	}

	if a == nil {
		return nil
	}
	err = s.call(ctx, timeout, func(ctx context.Context) error {
		return s.assignments.Delete(ctx, clinicID, a.ID)
	})
	if err != nil {
		s.logger.Error("compensation failed: assignment not removed", "op", op, "clinic_id", clinicID, "assignment_id", a.ID, "error", err)
	}
	return nil
}

// begin refreshes the cached view with the record just read and applies
// patch speculatively. Only operations that passed validation get here.
func (s *Service) begin(cl *client.Client, patch client.Patch) (*cache.Snapshot, error) {
	s.cache.Put(cl)
	snap, err := s.cache.Begin(cl.ClinicID, cl.ID, func(c *client.Client) {
		*c = *patch.Apply(c)
	})
	if err != nil {
		if errors.Is(err, cache.ErrSnapshotPending) {
			return nil, fmt.Errorf("%w: %w", ErrConcurrentModification, err)
		}
		return nil, err
	}
	return snap, nil
}

func (s *Service) confirm(op string, snap *cache.Snapshot, server *client.Client) {
	if err := s.cache.Confirm(snap, server); err != nil {
		s.logger.Error("cache confirm failed", "op", op, "client_id", snap.ClientID(), "error", err)
	}
}

func (s *Service) rollback(op string, snap *cache.Snapshot) {
	s.logger.Warn("rolling back optimistic update", "op", op, "client_id", snap.ClientID())
	if err := s.cache.Rollback(snap); err != nil {
		s.logger.Error("cache rollback failed", "op", op, "client_id", snap.ClientID(), "error", err)
	}
}

func (s *Service) newAssignment(clinicID, clientID, therapistID string, previous *string, reason, notes string) *Assignment {
	return &Assignment{
		ID:                  uuid.NewString(),
		ClinicID:            clinicID,
		ClientID:            clientID,
		TherapistID:         therapistID,
		PreviousTherapistID: previous,
		Reason:              reason,
		Notes:               notes,
		CreatedAt:           s.now().UTC(),
	}
}

func (s *Service) fail(ctx context.Context, op, clinicID, clientID, therapistID string, err error, rolledBack bool) error {
	kind := KindOf(err)
	level := slog.LevelInfo
	switch kind {
	case KindUpstream, KindTimeout:
		level = slog.LevelWarn
	case KindInconsistent:
		level = slog.LevelError
	}
	s.logger.Log(ctx, level, "assignment operation failed",
		"op", op,
		"clinic_id", clinicID,
		"client_id", clientID,
		"code", Code(err),
		"rolled_back", rolledBack,
		"error", err,
	)
	s.publish(ctx, clinicID, events.AssignmentFailed{
		Op:          op,
		ClientID:    clientID,
		TherapistID: therapistID,
		Code:        Code(err),
		Reason:      err.Error(),
		RolledBack:  rolledBack,
	})
	return &OpError{Op: op, ClientID: clientID, Kind: kind, RolledBack: rolledBack, Err: err}
}

func (s *Service) succeeded(ctx context.Context, clinicID string, ev events.AssignmentSucceeded) {
	s.logger.Info("assignment operation succeeded", "op", ev.Op, "clinic_id", clinicID, "client_id", ev.ClientID, "therapist_id", ev.TherapistID)
	s.publish(ctx, clinicID, ev)
}

func (s *Service) transitioned(ctx context.Context, clinicID, clientID string, from, to lifecycle.ClientStatus, trigger lifecycle.Trigger, reason string) {
	s.publish(ctx, clinicID, events.StatusTransitioned{
		ClientID: clientID,
		From:     from,
		To:       to,
		Trigger:  trigger,
		Reason:   reason,
	})
}

func (s *Service) publish(ctx context.Context, clinicID string, payload events.Payload) {
	if s.events == nil {
		return
	}
	s.events.Publish(ctx, clinicID, payload)
}

func blank(values ...string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			return true
		}
	}
	return false
}
