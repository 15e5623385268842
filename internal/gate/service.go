package gate

import (
	"context"
	"fmt"
	"time"

	"dealkernel/internal/audit"
	authoritymodels "dealkernel/internal/authority/models"
	dealmodels "dealkernel/internal/deal/models"
	"dealkernel/internal/domain"
	eventmodels "dealkernel/internal/event/models"
	"dealkernel/internal/gate/metrics"
	"dealkernel/internal/projection"
	id "dealkernel/pkg/domain"
	dErrors "dealkernel/pkg/domainerrors"
	"dealkernel/pkg/requestcontext"
)

// Events is the validated ledger surface the gate appends through.
type Events interface {
	Validate(ctx context.Context, dealID id.DealID, candidate eventmodels.Candidate) ([]domain.Role, error)
	Append(ctx context.Context, dealID id.DealID, candidate eventmodels.Candidate) (*eventmodels.Event, error)
}

// Rules resolves the per-deal authority rule for an action.
type Rules interface {
	RuleFor(ctx context.Context, dealID id.DealID, action domain.ActionType) (*authoritymodels.Rule, error)
}

// Projector replays the event log into state-at-T.
type Projector interface {
	ProjectAt(ctx context.Context, dealID id.DealID, at time.Time) (*projection.Projection, error)
	ProjectNow(ctx context.Context, dealID id.DealID, now time.Time) (*projection.Projection, error)
}

// Deals resolves deal existence and maintains the cached derived state.
type Deals interface {
	Get(ctx context.Context, dealID id.DealID) (*dealmodels.Deal, error)
	ReconcileState(ctx context.Context, dealID id.DealID, state domain.LifecycleState, stress bool) error
}

// Auditor records every enforcement decision.
type Auditor interface {
	Emit(ctx context.Context, entry audit.Entry) error
}

// Service is the authority gate. Request is the only write path into the
// ledger; Explain answers "could this action happen" without writing. Both
// run decide, so they cannot drift apart.
type Service struct {
	events    Events
	rules     Rules
	projector Projector
	deals     Deals
	auditor   Auditor
	cache     *projection.SnapshotCache // optional; nil disables invalidation
	locks     *dealLocks
	metrics   *metrics.Metrics
}

func New(events Events, rules Rules, projector Projector, deals Deals, auditor Auditor, cache *projection.SnapshotCache, m *metrics.Metrics) *Service {
	return &Service{
		events:    events,
		rules:     rules,
		projector: projector,
		deals:     deals,
		auditor:   auditor,
		cache:     cache,
		locks:     newDealLocks(),
		metrics:   m,
	}
}

// Request evaluates and, if allowed, appends the candidate in one atomic
// step per deal. Blocked requests return a BlockedError carrying the full
// decision; nothing is written on a block except the audit entry.
func (s *Service) Request(ctx context.Context, dealID id.DealID, candidate eventmodels.Candidate) (*eventmodels.Event, error) {
	start := time.Now()
	if _, err := s.deals.Get(ctx, dealID); err != nil {
		return nil, err
	}
	roles, err := s.events.Validate(ctx, dealID, candidate)
	if err != nil {
		return nil, err
	}
	action := domain.ActionForEvent(candidate.Type)

	unlock := s.locks.acquire(dealID)
	defer unlock()

	now := requestcontext.Now(ctx).UTC()
	proj, err := s.projector.ProjectNow(ctx, dealID, now)
	if err != nil {
		return nil, err
	}

	decision, err := s.decide(ctx, dealID, candidate, roles, action, now, proj)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveEvaluateLatency(time.Since(start))

	if decision.Status == StatusBlocked {
		s.metrics.IncrementDecision(string(action), "blocked")
		s.audit(ctx, dealID, candidate, action, audit.DecisionBlocked, blockReason(decision), false)
		return nil, newBlockedError(decision)
	}

	candidate.OverrideUsed = decision.OverrideUsed
	event, err := s.events.Append(ctx, dealID, candidate)
	if err != nil {
		return nil, err
	}

	s.reconcile(ctx, dealID, proj, event)
	if s.cache != nil {
		s.cache.Invalidate(ctx, dealID)
	}

	if decision.OverrideUsed {
		s.metrics.IncrementDecision(string(action), "overridden")
		s.metrics.IncrementOverride(string(action))
		s.audit(ctx, dealID, candidate, action, audit.DecisionOverridden,
			candidate.AuthorityContext.Justification, true)
	} else {
		s.metrics.IncrementDecision(string(action), "allowed")
		s.audit(ctx, dealID, candidate, action, audit.DecisionAllowed, "", false)
	}
	return event, nil
}

// Explain runs the same predicate read-only, at an optional historical
// instant. A hypothetical that would be blocked is still a successful
// explanation: the decision comes back, never an error, for everything past
// structural validation.
func (s *Service) Explain(ctx context.Context, dealID id.DealID, candidate eventmodels.Candidate, at *time.Time) (*Decision, error) {
	if _, err := s.deals.Get(ctx, dealID); err != nil {
		return nil, err
	}
	roles, err := s.events.Validate(ctx, dealID, candidate)
	if err != nil {
		return nil, err
	}
	action := domain.ActionForEvent(candidate.Type)

	now := requestcontext.Now(ctx).UTC()
	instant := now
	var proj *projection.Projection
	if at != nil {
		instant = at.UTC()
		proj, err = s.projector.ProjectAt(ctx, dealID, instant)
	} else {
		proj, err = s.projector.ProjectNow(ctx, dealID, now)
	}
	if err != nil {
		return nil, err
	}

	return s.decide(ctx, dealID, candidate, roles, action, instant, proj)
}

// decide is the shared predicate entry point. Everything that can block an
// action is expressed as a reason inside the decision; enforcement turns
// blocked decisions into errors, explanation returns them as answers.
func (s *Service) decide(ctx context.Context, dealID id.DealID, candidate eventmodels.Candidate, roles []domain.Role, action domain.ActionType, at time.Time, proj *projection.Projection) (*Decision, error) {
	if action == "" {
		return nil, dErrors.NewWithReason(dErrors.CodeBadRequest, dErrors.ReasonUnknownEventType,
			fmt.Sprintf("event type %q does not request an action", candidate.Type))
	}
	rule, err := s.rules.RuleFor(ctx, dealID, action)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "resolve authority rule", err)
	}
	// Best effort: names who can record a missing material in next steps.
	recordRule, _ := s.rules.RuleFor(ctx, dealID, domain.ActionRecordMaterial)

	asserted := candidate.AuthorityContext.RoleAsserted
	held := asserted == "" || holdsRole(roles, asserted)

	if candidate.AuthorityContext.Kind == domain.ContextOverride {
		if !held || !rule.HasOverrideRole([]domain.Role{asserted}) {
			return blockedWith(proj, action, at, Reason{
				Type: dErrors.ReasonForbiddenOverride,
				Message: fmt.Sprintf("role %s may not override %s; override roles are %v",
					asserted, action, rule.OverrideRoles),
			}), nil
		}
		d := evaluate(checkInputs{rule: rule, actorRoles: roles, asserted: asserted, proj: proj, at: at, recordRule: recordRule})
		applyOverride(d)
		return d, nil
	}

	if !held {
		return blockedWith(proj, action, at, Reason{
			Type:    dErrors.ReasonForbiddenRole,
			Message: fmt.Sprintf("actor does not hold asserted role %s", asserted),
		}), nil
	}

	return evaluate(checkInputs{rule: rule, actorRoles: roles, asserted: asserted, proj: proj, at: at, recordRule: recordRule}), nil
}

// reconcile refreshes the deal's cached derived state after an append. The
// lifecycle fold is forward-only, so the new state is the max of the
// projection's state and the event's target.
func (s *Service) reconcile(ctx context.Context, dealID id.DealID, proj *projection.Projection, event *eventmodels.Event) {
	state := proj.LifecycleState
	if target := event.Type.LifecycleTarget(); target != "" && target.Rank() > state.Rank() {
		state = target
	}
	stress := proj.StressMode
	switch event.Type {
	case domain.EventStressModeEntered:
		stress = true
	case domain.EventStressModeExited:
		stress = false
	}
	// Cache maintenance only; the log already holds the truth.
	_ = s.deals.ReconcileState(ctx, dealID, state, stress)
}

func (s *Service) audit(ctx context.Context, dealID id.DealID, candidate eventmodels.Candidate, action domain.ActionType, decision, reason string, override bool) {
	_ = s.auditor.Emit(ctx, audit.Entry{
		DealID:   dealID,
		ActorID:  candidate.ActorID,
		Action:   string(action),
		Decision: decision,
		Reason:   reason,
		Override: override,
	})
}

func blockedWith(proj *projection.Projection, action domain.ActionType, at time.Time, reason Reason) *Decision {
	return &Decision{
		Action:  action,
		Status:  StatusBlocked,
		At:      at,
		Reasons: []Reason{reason},
		InputsUsed: InputsUsed{
			DealStateAtT:  proj.LifecycleState,
			StressModeAtT: proj.StressMode,
			ApprovalsAtT:  proj.Approvals,
			MaterialsAtT:  proj.Materials,
			EventsApplied: proj.EventsApplied,
			LastSeq:       proj.LastSeq,
		},
	}
}

func blockReason(d *Decision) string {
	if len(d.Reasons) == 0 {
		return ""
	}
	return d.Reasons[0].Type
}

func holdsRole(roles []domain.Role, want domain.Role) bool {
	for _, r := range roles {
		if r == want {
			return true
		}
	}
	return false
}
