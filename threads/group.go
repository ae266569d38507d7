package threads

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/ygrebnov/spawn/metrics"
)

// Group owns a set of threads. Bulk attribute calls affect the members at the
// time of the call only; threads created later start from their own
// attributes.
//
// Join and Close must not be called from a member of the group.
type Group struct {
	cfg config
	log logrus.FieldLogger

	mu      sync.Mutex
	members []*Thread
	closed  bool

	seq      atomic.Uint64
	reserved atomic.Int64

	started  metrics.Counter
	joined   metrics.Counter
	detached metrics.Counter
	failed   metrics.Counter
	live     metrics.UpDownCounter
}

// NewGroup creates an empty thread group.
func NewGroup(opts ...Option) (*Group, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	m := cfg.Metrics
	g := &Group{
		cfg:      cfg,
		log:      cfg.Logger.WithField("group", cfg.Name),
		started:  m.Counter(metrics.ThreadsStarted, metrics.WithDescription("threads started")),
		joined:   m.Counter(metrics.ThreadsJoined, metrics.WithDescription("threads joined")),
		detached: m.Counter(metrics.ThreadsDetached, metrics.WithDescription("threads detached")),
		failed:   m.Counter(metrics.ThreadsFailed, metrics.WithDescription("thread creations failed")),
		live:     m.UpDownCounter(metrics.ThreadsLive, metrics.WithDescription("group members")),
	}
	return g, nil
}

// CreateThread starts a member running entry with default attributes.
func (g *Group) CreateThread(entry func()) (*Thread, error) {
	return g.CreateThreadWithAttributes(entry, Attributes{})
}

// CreateThreadWithAttributes starts a member running entry, applying attrs on
// the new thread before entry is invoked.
func (g *Group) CreateThreadWithAttributes(entry func(), attrs Attributes) (*Thread, error) {
	name := attrs.Name
	if name == "" {
		name = fmt.Sprintf("%s-%d", g.cfg.NamePrefix, g.seq.Add(1))
	}

	if err := g.admit(entry, attrs); err != nil {
		g.failed.Add(1)
		return nil, newThreadCreationError(name, err)
	}

	t, err := startThread(name, entry, attrs, g.log)
	if err != nil {
		g.reserved.Add(-1)
		g.failed.Add(1)
		g.log.WithError(err).WithField("thread", name).Warn("thread creation failed")
		return nil, err
	}

	g.mu.Lock()
	g.members = append(g.members, t)
	g.mu.Unlock()

	g.started.Add(1)
	g.live.Add(1)
	g.log.WithFields(logrus.Fields{"thread": name, "tid": t.tid}).Debug("thread started")
	return t, nil
}

// admit validates a creation request and reserves a member slot.
func (g *Group) admit(entry func(), attrs Attributes) error {
	if entry == nil {
		return ErrNilEntry
	}
	if err := attrs.validate(); err != nil {
		return err
	}

	g.mu.Lock()
	closed := g.closed
	g.mu.Unlock()
	if closed {
		return ErrGroupClosed
	}

	n := g.reserved.Add(1)
	if limit := g.cfg.MaxThreads; limit > 0 && n > int64(limit) {
		g.reserved.Add(-1)
		return ErrTooManyThreads
	}
	return nil
}

// CreateThreads starts n members running entry. Threads created before a
// failure remain in the group.
func (g *Group) CreateThreads(entry func(), n int) ([]*Thread, error) {
	return g.CreateThreadsWithAttributes(entry, n, Attributes{})
}

// CreateThreadsWithAttributes starts n members running entry with attrs. A
// non-empty attrs.Name is used as a prefix: "<name>-<i>".
func (g *Group) CreateThreadsWithAttributes(entry func(), n int, attrs Attributes) ([]*Thread, error) {
	out := make([]*Thread, 0, max(n, 0))
	base := attrs.Name
	for i := 0; i < n; i++ {
		a := attrs
		if base != "" {
			a.Name = fmt.Sprintf("%s-%d", base, i+1)
		}
		t, err := g.CreateThreadWithAttributes(entry, a)
		if err != nil {
			return out, err
		}
		out = append(out, t)
	}
	return out, nil
}

// Size returns the number of members.
func (g *Group) Size() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.members)
}

// Threads returns a snapshot of the members.
func (g *Group) Threads() []*Thread {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.members)
}

// SetPriority applies p to every current member.
func (g *Group) SetPriority(p Priority) error {
	if !p.valid() {
		return ErrInvalidAttribute
	}
	return g.each(func(t *Thread) error { return t.SetPriority(p) })
}

// SetNativePriority applies the nice value n to every current member.
func (g *Group) SetNativePriority(n int) error {
	if !validNative(n) {
		return ErrInvalidAttribute
	}
	return g.each(func(t *Thread) error { return t.SetNativePriority(n) })
}

// SetAffinity applies cpus to every current member.
func (g *Group) SetAffinity(cpus CPUSet) error {
	if !cpus.valid() {
		return ErrInvalidAttribute
	}
	return g.each(func(t *Thread) error { return t.SetAffinity(cpus) })
}

// SetDtorAction applies a to every current member.
func (g *Group) SetDtorAction(a DtorAction) error {
	if !a.valid() {
		return ErrInvalidAttribute
	}
	return g.each(func(t *Thread) error { return t.SetDtorAction(a) })
}

func (g *Group) each(fn func(*Thread) error) error {
	var errs []error
	for _, t := range g.Threads() {
		if err := fn(t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Priority returns the members' common priority level.
func (g *Group) Priority() (Priority, error) {
	return common(g, (*Thread).Priority, func(a, b Priority) bool { return a == b })
}

// NativePriority returns the members' common nice value.
func (g *Group) NativePriority() (int, error) {
	return common(g, (*Thread).NativePriority, func(a, b int) bool { return a == b })
}

// Affinity returns the members' common CPU set.
func (g *Group) Affinity() (CPUSet, error) {
	return common(g, (*Thread).Affinity, CPUSet.Equal)
}

// DtorAction returns the members' common destruction action.
func (g *Group) DtorAction() (DtorAction, error) {
	return common(g, (*Thread).DtorAction, func(a, b DtorAction) bool { return a == b })
}

func common[V any](g *Group, get func(*Thread) V, eq func(a, b V) bool) (V, error) {
	var zero V
	members := g.Threads()
	if len(members) == 0 {
		return zero, ErrEmptyGroup
	}
	v := get(members[0])
	for _, t := range members[1:] {
		if !eq(v, get(t)) {
			return zero, ErrAttributeMismatch
		}
	}
	return v, nil
}

// Join waits for every member to finish and removes it from the group.
// Threads created while Join runs are joined too. Join on an empty group
// returns immediately.
func (g *Group) Join() error {
	if g.isMember() {
		return ErrSelfJoin
	}
	for {
		g.mu.Lock()
		if len(g.members) == 0 {
			g.mu.Unlock()
			return nil
		}
		t := g.members[0]
		g.mu.Unlock()

		t.Wait()
		if g.remove(t) {
			g.joined.Add(1)
			g.log.WithField("thread", t.name).Debug("thread joined")
		}
	}
}

// Close rejects further creations, then joins DtorJoin members and detaches
// DtorDetach members. Detached threads keep running.
func (g *Group) Close() error {
	if g.isMember() {
		return ErrSelfJoin
	}
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()

	for _, t := range g.Threads() {
		if t.DtorAction() == DtorDetach {
			if g.remove(t) {
				g.detached.Add(1)
				g.log.WithField("thread", t.name).Debug("thread detached")
			}
		}
	}
	return g.Join()
}

func (g *Group) remove(t *Thread) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	i := slices.Index(g.members, t)
	if i < 0 {
		return false
	}
	g.members = slices.Delete(g.members, i, i+1)
	g.reserved.Add(-1)
	g.live.Add(-1)
	return true
}

// isMember reports whether the caller runs on a member thread.
func (g *Group) isMember() bool {
	tid := currentThreadID()
	if tid == 0 {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, t := range g.members {
		if t.tid == tid && !t.finished() {
			return true
		}
	}
	return false
}
