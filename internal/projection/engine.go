package projection

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"dealkernel/internal/domain"
	eventmodels "dealkernel/internal/event/models"
	id "dealkernel/pkg/domain"
	dErrors "dealkernel/pkg/domainerrors"
)

// EventSource is the ledger read path. Projections consume ReplayPrefix and
// nothing else — never cached or derived state.
type EventSource interface {
	ReplayPrefix(ctx context.Context, dealID id.DealID, upto *time.Time) ([]eventmodels.Event, error)
	LastSeq(ctx context.Context, dealID id.DealID) (int64, error)
}

// Engine replays event logs into projections.
type Engine struct {
	events EventSource
	cache  *SnapshotCache // optional; nil disables caching
}

// NewEngine builds a projection engine. cache may be nil.
func NewEngine(events EventSource, cache *SnapshotCache) *Engine {
	return &Engine{events: events, cache: cache}
}

// ProjectAt folds the deal's event prefix up to the instant. Historical
// queries always replay in full. "Now" queries may be served from the
// snapshot cache, but only after the cached sequence number matches the
// ledger's — a stale snapshot is recomputed, never trusted.
func (e *Engine) ProjectAt(ctx context.Context, dealID id.DealID, at time.Time) (*Projection, error) {
	events, err := e.events.ReplayPrefix(ctx, dealID, &at)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "replay event prefix", err)
	}
	return fold(dealID, at, events), nil
}

// ProjectNow folds the full log, consulting the cache when its sequence
// check passes.
func (e *Engine) ProjectNow(ctx context.Context, dealID id.DealID, now time.Time) (*Projection, error) {
	lastSeq, err := e.events.LastSeq(ctx, dealID)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "read ledger position", err)
	}

	if e.cache != nil {
		if cached, ok := e.cache.Get(ctx, dealID, lastSeq); ok {
			cached.At = now
			return cached, nil
		}
	}

	events, err := e.events.ReplayPrefix(ctx, dealID, nil)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "replay event log", err)
	}
	proj := fold(dealID, now, events)
	if e.cache != nil && proj.LastSeq == lastSeq {
		e.cache.Put(ctx, dealID, proj)
	}
	return proj, nil
}

// VerifyDeterministic replays the same prefix through two independent ledger
// reads and compares the folded bytes. Divergence means the fold consulted
// something outside the log; that is an integrity failure, reported as such
// rather than picking either result.
func (e *Engine) VerifyDeterministic(ctx context.Context, dealID id.DealID, at *time.Time) error {
	instant := time.Unix(0, 0).UTC()
	if at != nil {
		instant = at.UTC()
	}

	first, err := e.events.ReplayPrefix(ctx, dealID, at)
	if err != nil {
		return dErrors.Wrap(dErrors.CodeInternal, "replay event prefix", err)
	}
	second, err := e.events.ReplayPrefix(ctx, dealID, at)
	if err != nil {
		return dErrors.Wrap(dErrors.CodeInternal, "replay event prefix", err)
	}

	a, err := json.Marshal(fold(dealID, instant, first))
	if err != nil {
		return dErrors.Wrap(dErrors.CodeInternal, "marshal projection", err)
	}
	b, err := json.Marshal(fold(dealID, instant, second))
	if err != nil {
		return dErrors.Wrap(dErrors.CodeInternal, "marshal projection", err)
	}
	if !bytes.Equal(a, b) {
		return dErrors.NewWithReason(dErrors.CodeInternal, dErrors.ReasonNonDeterministic,
			fmt.Sprintf("two replays of deal %s produced different projections", dealID))
	}
	return nil
}

// fold is the deterministic transition function: left-to-right over the
// prefix, no wall clock, no randomness, sorted output.
func fold(dealID id.DealID, at time.Time, events []eventmodels.Event) *Projection {
	state := domain.StateDraft
	stress := false
	tally := make(map[domain.ActionType]map[domain.Role]bool)
	bestMaterials := make(map[string]materialCandidate)

	var lastSeq int64
	for _, ev := range events {
		lastSeq = ev.Seq

		// Lifecycle is forward-only: an event can advance state, never
		// regress it.
		if target := ev.Type.LifecycleTarget(); target != "" && target.Rank() > state.Rank() {
			state = target
		}

		switch ev.Type {
		case domain.EventStressModeEntered:
			stress = true
		case domain.EventStressModeExited:
			stress = false
		case domain.EventApprovalGranted:
			applyApproval(tally, ev)
		case domain.EventMaterialRecorded:
			applyMaterial(bestMaterials, ev)
		}
	}

	return &Projection{
		DealID:         dealID,
		At:             at.UTC(),
		LifecycleState: state,
		StressMode:     stress,
		Approvals:      sortedApprovals(tally),
		Materials:      sortedMaterials(bestMaterials),
		Deterministic:  true,
		ReplayFrom:     time.Unix(0, 0).UTC(),
		EventsApplied:  len(events),
		LastSeq:        lastSeq,
	}
}

// applyApproval counts each (action, role) pair at most once: thresholds
// count distinct roles, so a second approval from the same role is a no-op.
func applyApproval(tally map[domain.ActionType]map[domain.Role]bool, ev eventmodels.Event) {
	if ev.AuthorityContext.Kind != domain.ContextApproval {
		return
	}
	action := ev.AuthorityContext.TargetAction
	role := ev.AuthorityContext.RoleAsserted
	if action == "" || role == "" {
		return
	}
	if tally[action] == nil {
		tally[action] = make(map[domain.Role]bool)
	}
	tally[action][role] = true
}

type materialCandidate struct {
	state MaterialState
	seq   int64
}

func applyMaterial(best map[string]materialCandidate, ev eventmodels.Event) {
	var payload domain.MaterialPayload
	if err := domain.DecodePayload(ev.Payload, &payload); err != nil {
		return
	}
	if payload.MaterialType == "" || !domain.ValidTruthClass(payload.TruthClass) {
		return
	}
	asOf, err := time.Parse(time.RFC3339Nano, payload.AsOf)
	if err != nil {
		asOf = ev.CreatedAt
	}

	candidate := materialCandidate{
		state: MaterialState{
			Type:       payload.MaterialType,
			TruthClass: payload.TruthClass,
			AsOf:       asOf.UTC(),
			MaterialID: payload.MaterialID,
		},
		seq: ev.Seq,
	}

	cur, exists := best[payload.MaterialType]
	if !exists || stronger(candidate, cur) {
		best[payload.MaterialType] = candidate
	}
}

// stronger orders material candidates: truth class strength, then asOf,
// then ledger position. Total order, so replay ties break identically
// everywhere.
func stronger(a, b materialCandidate) bool {
	if as, bs := a.state.TruthClass.Strength(), b.state.TruthClass.Strength(); as != bs {
		return as > bs
	}
	if !a.state.AsOf.Equal(b.state.AsOf) {
		return a.state.AsOf.After(b.state.AsOf)
	}
	return a.seq > b.seq
}

func sortedApprovals(tally map[domain.ActionType]map[domain.Role]bool) []ActionApprovals {
	out := make([]ActionApprovals, 0, len(tally))
	for action, roles := range tally {
		sorted := make([]domain.Role, 0, len(roles))
		for role := range roles {
			sorted = append(sorted, role)
		}
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		out = append(out, ActionApprovals{Action: action, Roles: sorted, Count: len(sorted)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Action < out[j].Action })
	return out
}

func sortedMaterials(best map[string]materialCandidate) []MaterialState {
	out := make([]MaterialState, 0, len(best))
	for _, c := range best {
		out = append(out, c.state)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}
