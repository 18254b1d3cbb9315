// Package drag runs the optimistic drag-and-drop gesture state machine on top
// of the board store.
//
// A gesture moves through Idle -> Active -> Committing -> Idle on success, or
// ends in RollingBack -> Idle when the server rejects the move, the transport
// fails, or the pointer never reached a valid drop target. Broadcast events
// that arrive while a gesture is open are journaled so a rollback can restore
// the pre-gesture snapshot and then re-apply everything other clients did in
// the meantime.
package drag

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/boardsync/internal/board"
	"github.com/gosuda/boardsync/internal/domain"
	"github.com/gosuda/boardsync/internal/droptarget"
	"github.com/gosuda/boardsync/internal/position"
)

var (
	ErrBusy         = errors.New("drag session already in progress")
	ErrNoSession    = errors.New("no active drag session")
	ErrNotDraggable = errors.New("item kind cannot be dragged")
	ErrCommitting   = errors.New("drag session is committing")
)

// State is the phase of the current gesture.
type State string

const (
	StateIdle        State = "idle"
	StateActive      State = "active"
	StateCommitting  State = "committing"
	StateRollingBack State = "rolling_back"
)

// Outcome is how a gesture ended.
type Outcome string

const (
	// OutcomeCommitted means the server accepted the move.
	OutcomeCommitted Outcome = "committed"
	// OutcomeUnchanged means the item was dropped where it started; nothing
	// was sent.
	OutcomeUnchanged Outcome = "unchanged"
	// OutcomeCancelled means the gesture never resolved a target or was
	// cancelled explicitly; nothing was sent.
	OutcomeCancelled Outcome = "cancelled"
	// OutcomeRolledBack means the move failed and the board was restored.
	OutcomeRolledBack Outcome = "rolled_back"
)

// Committer sends the final move of a gesture to the server of record.
type Committer interface {
	MoveList(ctx context.Context, cmd domain.MoveList) error
	MoveCard(ctx context.Context, cmd domain.MoveCard) error
}

// Recorder receives gesture statistics. A nil Recorder is allowed.
type Recorder interface {
	DragFinished(kind domain.ItemKind, outcome Outcome)
	EventDeferred()
}

type placement struct {
	parent domain.Ref
	pos    float64
}

type session struct {
	item         domain.Ref
	originParent domain.Ref
	originIndex  int
	snapshot     board.Snapshot

	target    *droptarget.Target
	placement *placement

	// journal holds every event observed since Start, in arrival order.
	journal []domain.Event
	// deferred holds the subset of journal whose effect on the dragged
	// item's position was withheld.
	deferred []domain.Event
}

// Manager owns at most one gesture at a time.
//
// One call at a time drives the store through the manager: event
// application through Observe, optimistic relocation, rollback and rebase.
// An event that reaches Observe while another call holds the store,
// including one a store subscriber feeds back synchronously, is queued and
// applied by the holder before it lets go. mu guards the manager's own
// fields and is never held while the store is mutated, so store subscribers
// may call Observe, State, Subject or Target freely. Start, Move, End and
// Cancel must not be called from a store subscriber.
type Manager struct {
	store     *board.Store
	resolver  *droptarget.Resolver
	committer Committer
	rec       Recorder

	mu      sync.Mutex
	settled *sync.Cond
	busy    bool
	pending []observation
	replay  func(domain.Event)
	state   State
	sess    *session
}

type observation struct {
	ev    domain.Event
	moves []domain.Ref
	apply func(hold domain.Ref) error
}

// NewManager creates a manager. rec may be nil.
func NewManager(store *board.Store, committer Committer, rec Recorder) *Manager {
	m := &Manager{
		store:     store,
		resolver:  droptarget.NewResolver(store),
		committer: committer,
		rec:       rec,
		replay:    func(domain.Event) {},
		state:     StateIdle,
	}
	m.settled = sync.NewCond(&m.mu)
	return m
}

// SetReplayer installs the function used to re-apply journaled events after a
// rollback. It must apply events to the store directly, without going back
// through Observe.
func (m *Manager) SetReplayer(fn func(domain.Event)) {
	m.acquire()
	defer m.release()
	if fn == nil {
		fn = func(domain.Event) {}
	}
	m.replay = fn
}

// State reports the current phase.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subject returns the item being dragged, if any.
func (m *Manager) Subject() (domain.Ref, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return domain.Ref{}, false
	}
	return m.sess.item, true
}

// Target returns the most recently resolved drop target of the open gesture.
func (m *Manager) Target() (droptarget.Target, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil || m.sess.target == nil {
		return droptarget.Target{}, false
	}
	return *m.sess.target, true
}

// Start opens a gesture for item, which must be a list or a card.
func (m *Manager) Start(item domain.Ref) error {
	if item.Kind != domain.KindList && item.Kind != domain.KindCard {
		return fmt.Errorf("drag.Manager.Start: %s: %w", item, ErrNotDraggable)
	}

	m.acquire()
	defer m.release()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateIdle {
		return fmt.Errorf("drag.Manager.Start: %w", ErrBusy)
	}

	parent, ok := m.store.ParentOf(item)
	if !ok {
		return fmt.Errorf("drag.Manager.Start: %s: %w", item, domain.ErrNotFound)
	}
	ids, _, _ := m.store.Children(parent)

	m.sess = &session{
		item:         item,
		originParent: parent,
		originIndex:  slices.Index(ids, item.ID),
		snapshot:     m.store.Snapshot(),
	}
	m.state = StateActive

	log.Debug().Str("item", item.String()).Str("parent", parent.String()).Msg("drag started")
	return nil
}

// Move feeds the regions under the pointer into the gesture. When they
// resolve to a different parent than the item currently has, the item is
// relocated there optimistically. Hits that resolve to nothing keep the
// previous target.
func (m *Manager) Move(hits []droptarget.Region) error {
	m.acquire()
	defer m.release()

	m.mu.Lock()
	if m.state != StateActive {
		m.mu.Unlock()
		return fmt.Errorf("drag.Manager.Move: %w", ErrNoSession)
	}
	sess := m.sess
	m.mu.Unlock()

	target, ok := m.resolver.Resolve(sess.item, hits)
	if !ok {
		return nil
	}

	m.mu.Lock()
	sess.target = &target
	m.mu.Unlock()

	current, ok := m.store.ParentOf(sess.item)
	if !ok || current == target.Parent || sess.item.Kind != domain.KindCard {
		return nil
	}

	pos := m.positionAt(sess.item, target)
	if err := m.store.RelocateCard(sess.item.ID, current.ID, target.Parent.ID, pos); err != nil {
		return fmt.Errorf("drag.Manager.Move: %w", err)
	}

	m.mu.Lock()
	sess.placement = &placement{parent: target.Parent, pos: pos}
	m.mu.Unlock()
	return nil
}

// End finishes the gesture. A gesture without a target is cancelled, a drop
// at the origin is a no-op, and otherwise the move is committed; on failure
// the board is rolled back and the error returned.
func (m *Manager) End(ctx context.Context) (Outcome, error) {
	m.acquire()

	m.mu.Lock()
	if m.state != StateActive {
		m.mu.Unlock()
		m.release()
		return "", fmt.Errorf("drag.Manager.End: %w", ErrNoSession)
	}
	sess := m.sess
	m.mu.Unlock()

	if sess.target == nil {
		m.rollback(sess)
		m.release()
		m.finished(sess, OutcomeCancelled)
		return OutcomeCancelled, nil
	}
	target := *sess.target

	current, ok := m.store.ParentOf(sess.item)
	if !ok {
		m.rollback(sess)
		m.release()
		m.finished(sess, OutcomeRolledBack)
		return OutcomeRolledBack, fmt.Errorf("drag.Manager.End: %s: %w", sess.item, domain.ErrNotFound)
	}

	if target.Parent == sess.originParent && target.Index == sess.originIndex {
		m.rollback(sess)
		m.release()
		m.finished(sess, OutcomeUnchanged)
		return OutcomeUnchanged, nil
	}

	pos := m.positionAt(sess.item, target)
	var err error
	if sess.item.Kind == domain.KindList {
		err = m.store.RelocateList(sess.item.ID, pos)
	} else {
		err = m.store.RelocateCard(sess.item.ID, current.ID, target.Parent.ID, pos)
	}
	if err != nil {
		m.rollback(sess)
		m.release()
		m.finished(sess, OutcomeRolledBack)
		return OutcomeRolledBack, fmt.Errorf("drag.Manager.End: %w", err)
	}

	m.mu.Lock()
	sess.placement = &placement{parent: target.Parent, pos: pos}
	m.state = StateCommitting
	m.mu.Unlock()
	m.release()

	if sess.item.Kind == domain.KindList {
		err = m.committer.MoveList(ctx, domain.MoveList{ListID: sess.item.ID, Position: pos})
	} else {
		err = m.committer.MoveCard(ctx, domain.MoveCard{
			FromListID: sess.originParent.ID,
			CardID:     sess.item.ID,
			ToListID:   target.Parent.ID,
			Position:   pos,
		})
	}

	m.acquire()
	defer m.release()

	if err != nil {
		m.rollback(sess)
		m.finished(sess, OutcomeRolledBack)
		log.Warn().Err(err).Str("item", sess.item.String()).Msg("drag commit failed, rolled back")
		return OutcomeRolledBack, fmt.Errorf("drag.Manager.End: %w", err)
	}

	m.mu.Lock()
	deferred := sess.deferred
	m.mu.Unlock()
	for _, ev := range deferred {
		m.replay(ev)
	}

	m.mu.Lock()
	m.state = StateIdle
	m.sess = nil
	m.mu.Unlock()

	m.finished(sess, OutcomeCommitted)
	return OutcomeCommitted, nil
}

// Cancel abandons an Active gesture and restores the board. Once the commit
// request has been sent the gesture can no longer be cancelled.
func (m *Manager) Cancel() error {
	m.acquire()
	defer m.release()

	m.mu.Lock()
	switch m.state {
	case StateActive:
	case StateCommitting, StateRollingBack:
		m.mu.Unlock()
		return fmt.Errorf("drag.Manager.Cancel: %w", ErrCommitting)
	default:
		m.mu.Unlock()
		return fmt.Errorf("drag.Manager.Cancel: %w", ErrNoSession)
	}
	sess := m.sess
	m.mu.Unlock()

	m.rollback(sess)
	m.finished(sess, OutcomeCancelled)
	return nil
}

// Observe runs apply for a broadcast event under the gesture's admission
// rules. moves lists the items whose position ev changes. When the dragged
// item is among them, apply receives it as hold and must leave that item's
// position alone; the full event is replayed when the gesture settles.
// Outside a gesture hold is the zero Ref.
//
// If another call holds the store, ev is queued behind it and Observe
// returns nil at once; apply then runs on the holder's goroutine and must
// report its own failures. Otherwise Observe returns apply's error.
func (m *Manager) Observe(ev domain.Event, moves []domain.Ref, apply func(hold domain.Ref) error) error {
	o := observation{ev: ev, moves: moves, apply: apply}

	m.mu.Lock()
	if m.busy {
		m.pending = append(m.pending, o)
		m.mu.Unlock()
		return nil
	}
	m.busy = true
	m.mu.Unlock()

	defer m.release()
	return m.observe(o)
}

// observe journals o against the open gesture, if any, and applies it. The
// caller holds the store.
func (m *Manager) observe(o observation) error {
	var hold domain.Ref
	m.mu.Lock()
	if sess := m.sess; sess != nil {
		sess.journal = append(sess.journal, o.ev)
		if slices.Contains(o.moves, sess.item) {
			sess.deferred = append(sess.deferred, o.ev)
			hold = sess.item
		}
	}
	m.mu.Unlock()

	if hold != (domain.Ref{}) && m.rec != nil {
		m.rec.EventDeferred()
	}
	return o.apply(hold)
}

// acquire waits until no other call holds the store and takes it.
func (m *Manager) acquire() {
	m.mu.Lock()
	for m.busy {
		m.settled.Wait()
	}
	m.busy = true
	m.mu.Unlock()
}

// release applies the events queued while the store was held, in arrival
// order, then gives the store up.
func (m *Manager) release() {
	for {
		m.mu.Lock()
		if len(m.pending) == 0 {
			m.busy = false
			m.pending = nil
			m.mu.Unlock()
			m.settled.Broadcast()
			return
		}
		next := m.pending[0]
		m.pending = m.pending[1:]
		m.mu.Unlock()

		_ = m.observe(next)
	}
}

// Rebase replaces the board with a freshly fetched server state. During a
// gesture the fresh state becomes the rollback snapshot and the dragged
// item's optimistic placement is re-applied on top of it.
func (m *Manager) Rebase(fresh domain.Workspace) {
	m.acquire()
	defer m.release()

	m.mu.Lock()
	sess := m.sess
	if sess != nil {
		sess.snapshot = board.SnapshotOf(fresh)
		sess.journal = nil
		sess.deferred = nil
	}
	m.mu.Unlock()

	m.store.Load(fresh)
	if sess == nil {
		return
	}

	parent, ok := m.store.ParentOf(sess.item)
	if !ok {
		return
	}
	ids, _, _ := m.store.Children(parent)

	m.mu.Lock()
	sess.originParent = parent
	sess.originIndex = slices.Index(ids, sess.item.ID)
	pl := sess.placement
	m.mu.Unlock()

	if pl == nil {
		return
	}
	var err error
	if sess.item.Kind == domain.KindList {
		err = m.store.RelocateList(sess.item.ID, pl.pos)
	} else {
		err = m.store.RelocateCard(sess.item.ID, parent.ID, pl.parent.ID, pl.pos)
	}
	if err != nil {
		log.Debug().Err(err).Str("item", sess.item.String()).Msg("drag placement dropped on rebase")
	}
}

// positionAt allocates a position for item at target.Index among the target
// parent's current children, with item excluded.
func (m *Manager) positionAt(item domain.Ref, target droptarget.Target) float64 {
	ids, positions, _ := m.store.Children(target.Parent)
	siblings := make([]float64, 0, len(positions))
	for i, id := range ids {
		if id != item.ID {
			siblings = append(siblings, positions[i])
		}
	}
	return position.AllocateForIndex(siblings, target.Index)
}

// rollback restores the pre-gesture snapshot, replays the journal and
// returns to Idle. The caller holds the store.
func (m *Manager) rollback(sess *session) {
	m.mu.Lock()
	m.state = StateRollingBack
	journal := sess.journal
	m.mu.Unlock()

	m.store.Restore(sess.snapshot)
	for _, ev := range journal {
		m.replay(ev)
	}

	m.mu.Lock()
	m.state = StateIdle
	m.sess = nil
	m.mu.Unlock()
}

func (m *Manager) finished(sess *session, outcome Outcome) {
	log.Debug().Str("item", sess.item.String()).Str("outcome", string(outcome)).Msg("drag finished")
	if m.rec != nil {
		m.rec.DragFinished(sess.item.Kind, outcome)
	}
}
