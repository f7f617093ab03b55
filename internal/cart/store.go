package cart

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pawmart/storefront/internal/session"
	"github.com/pawmart/storefront/pkg/localstore"
	"github.com/pawmart/storefront/pkg/logger"
	"github.com/pawmart/storefront/pkg/metrics"
)

const (
	sessionKey         = "session"
	defaultSyncTimeout = 10 * time.Second
)

type identitySource interface {
	Current() session.Owner
	Watch(fn func(session.Owner)) func()
}

// Store is the single authority for cart contents during a browsing
// session. Local mutations apply synchronously under the lock and persist
// to the local store before any network activity; remote mirroring is
// fire-and-forget with a resynchronizing re-fetch after failed writes.
type Store struct {
	mu      sync.Mutex
	session Session

	kv       localstore.KV
	remote   Remote
	identity identitySource
	notifier *Notifier
	logg     *logger.Logger
	metrics  *metrics.CartMetrics

	syncTimeout time.Duration
	wg          sync.WaitGroup
	cancelWatch func()
}

type StoreParams struct {
	KV       localstore.KV
	Remote   Remote
	Identity identitySource
	Logger   *logger.Logger
	Metrics  *metrics.CartMetrics

	NoticeTTL   time.Duration
	SyncTimeout time.Duration
}

// NewStore builds the cart store and subscribes it to owner changes. Call
// Init afterwards to load persisted and remote state.
func NewStore(params StoreParams) (*Store, error) {
	if params.KV == nil {
		return nil, fmt.Errorf("local store required")
	}
	if params.Identity == nil {
		return nil, fmt.Errorf("identity source required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}

	s := &Store{
		kv:          params.KV,
		remote:      params.Remote,
		identity:    params.Identity,
		notifier:    NewNotifier(params.NoticeTTL),
		logg:        params.Logger,
		metrics:     params.Metrics,
		syncTimeout: params.SyncTimeout,
	}
	if s.syncTimeout <= 0 {
		s.syncTimeout = defaultSyncTimeout
	}
	s.session = Session{Owner: params.Identity.Current()}
	s.cancelWatch = params.Identity.Watch(s.handleOwnerChange)
	return s, nil
}

// Init restores the persisted cart for the current owner. A persisted cart
// belonging to a different owner is discarded so carts never leak across
// accounts sharing one profile. For an authenticated owner the remote cart
// wins on this initial load.
func (s *Store) Init(ctx context.Context) {
	owner := s.identity.Current()

	s.mu.Lock()
	var persisted Session
	ok, err := s.kv.Get(ctx, localstore.NamespaceCart, sessionKey, &persisted)
	if err != nil {
		s.logg.Error(ctx, "cart.init.load_persisted", err)
	}
	if ok && persisted.Owner.Same(owner) {
		s.session = persisted
		s.session.Owner = owner
	} else {
		s.session = Session{Owner: owner}
		if ok {
			s.logg.Info(s.logg.WithOwnerID(ctx, owner.UserID), "cart.init.owner_mismatch_discard")
		}
		s.persistLocked(ctx)
	}
	s.mu.Unlock()

	if owner.Authenticated() && s.remote != nil {
		s.refreshFromRemote(ctx, owner)
	}
}

// Add puts the product in the cart or raises the quantity of its existing
// line, honoring the stock ceiling. Business-rule rejections surface only
// through the notifier.
func (s *Store) Add(ctx context.Context, snap Snapshot, quantity int) Outcome {
	if snap.ProductID == "" {
		snap.ProductID = uuid.NewString()
		snap.Surrogate = true
	}
	if quantity <= 0 {
		quantity = 1
	}

	s.mu.Lock()
	next, outcome := applyAdd(s.session, snap, quantity)
	s.observe("add", outcome)
	if !outcome.Accepted() {
		s.notifyOutcome(outcome)
		s.mu.Unlock()
		return outcome
	}
	s.session = next
	s.persistLocked(ctx)
	owner := s.session.Owner
	s.notifyOutcome(outcome)
	s.mu.Unlock()

	line := outcome.Line
	if !s.canSync(owner) || line.Surrogate {
		return outcome
	}

	// The backend's add endpoint sums posted quantities into an existing
	// row. When the line already has a backend id, set the absolute total
	// instead; otherwise push only this mutation's increment.
	if outcome.Kind == EventUpdated && line.BackendLineID != nil {
		backendID := *line.BackendLineID
		total := line.Quantity
		productID := line.ProductID
		s.spawn(func(syncCtx context.Context) {
			start := time.Now()
			err := s.remote.UpdateQuantity(syncCtx, backendID, total)
			s.metrics.ObserveSync("update", time.Since(start), err)
			if err != nil {
				s.logg.Error(s.syncLogCtx(syncCtx, owner, productID), "cart.sync.update_failed", err)
				s.resync(syncCtx, owner)
			}
		})
		return outcome
	}

	pushed := line.clone()
	pushed.Quantity = quantity
	s.spawn(func(syncCtx context.Context) {
		start := time.Now()
		err := s.remote.Add(syncCtx, pushed)
		s.metrics.ObserveSync("add", time.Since(start), err)
		if err != nil {
			s.logg.Error(s.syncLogCtx(syncCtx, owner, pushed.ProductID), "cart.sync.add_failed", err)
			s.resync(syncCtx, owner)
			return
		}
		// Re-fetch to learn the backend-assigned line id.
		s.adoptRemoteIDs(syncCtx, owner)
	})
	return outcome
}

// SetQuantity updates a line's quantity. Non-positive quantities remove the
// line; a quantity above the known ceiling is rejected untouched.
func (s *Store) SetQuantity(ctx context.Context, productID string, quantity int) Outcome {
	s.mu.Lock()
	next, outcome := applySetQuantity(s.session, productID, quantity)
	s.observe("update", outcome)
	if !outcome.Accepted() {
		s.notifyOutcome(outcome)
		s.mu.Unlock()
		return outcome
	}
	s.session = next
	s.persistLocked(ctx)
	owner := s.session.Owner
	s.notifyOutcome(outcome)
	s.mu.Unlock()

	line := outcome.Line
	if line == nil || !s.canSync(owner) || line.Surrogate || line.BackendLineID == nil {
		return outcome
	}

	backendID := *line.BackendLineID
	switch outcome.Kind {
	case EventUpdated:
		qty := line.Quantity
		s.spawn(func(syncCtx context.Context) {
			start := time.Now()
			err := s.remote.UpdateQuantity(syncCtx, backendID, qty)
			s.metrics.ObserveSync("update", time.Since(start), err)
			if err != nil {
				s.logg.Error(s.syncLogCtx(syncCtx, owner, line.ProductID), "cart.sync.update_failed", err)
				s.resync(syncCtx, owner)
			}
		})
	case EventRemoved:
		s.spawn(func(syncCtx context.Context) {
			start := time.Now()
			err := s.remote.Remove(syncCtx, backendID)
			s.metrics.ObserveSync("remove", time.Since(start), err)
			if err != nil {
				s.logg.Error(s.syncLogCtx(syncCtx, owner, line.ProductID), "cart.sync.remove_failed", err)
				s.resync(syncCtx, owner)
			}
		})
	}
	return outcome
}

// Remove drops the line for the product, if present.
func (s *Store) Remove(ctx context.Context, productID string) Outcome {
	s.mu.Lock()
	next, outcome := applyRemove(s.session, productID)
	s.observe("remove", outcome)
	if !outcome.Accepted() {
		s.mu.Unlock()
		return outcome
	}
	s.session = next
	s.persistLocked(ctx)
	owner := s.session.Owner
	s.notifyOutcome(outcome)
	s.mu.Unlock()

	line := outcome.Line
	if line == nil || !s.canSync(owner) || line.Surrogate || line.BackendLineID == nil {
		return outcome
	}
	backendID := *line.BackendLineID
	s.spawn(func(syncCtx context.Context) {
		start := time.Now()
		err := s.remote.Remove(syncCtx, backendID)
		s.metrics.ObserveSync("remove", time.Since(start), err)
		if err != nil {
			s.logg.Error(s.syncLogCtx(syncCtx, owner, line.ProductID), "cart.sync.remove_failed", err)
			s.resync(syncCtx, owner)
		}
	})
	return outcome
}

// Clear empties the cart.
func (s *Store) Clear(ctx context.Context) Outcome {
	s.mu.Lock()
	next, outcome := applyClear(s.session)
	s.observe("clear", outcome)
	s.session = next
	s.persistLocked(ctx)
	owner := s.session.Owner
	s.notifyOutcome(outcome)
	s.mu.Unlock()

	if s.canSync(owner) {
		s.spawn(func(syncCtx context.Context) {
			start := time.Now()
			err := s.remote.Clear(syncCtx)
			s.metrics.ObserveSync("clear", time.Since(start), err)
			if err != nil {
				s.logg.Error(s.syncLogCtx(syncCtx, owner, ""), "cart.sync.clear_failed", err)
				s.resync(syncCtx, owner)
			}
		})
	}
	return outcome
}

// MergeRemote folds the given locally accumulated lines into the remote
// account cart and adopts the merged result. Used right after login, before
// the owner-change reset has discarded the anonymous cart's lines.
func (s *Store) MergeRemote(ctx context.Context, lines []Line) error {
	owner := s.identity.Current()
	if !s.canSync(owner) {
		return nil
	}

	start := time.Now()
	merged, err := s.remote.Merge(ctx, lines)
	s.metrics.ObserveSync("merge", time.Since(start), err)
	if err != nil {
		s.logg.Error(s.syncLogCtx(ctx, owner, ""), "cart.sync.merge_failed", err)
		s.resync(ctx, owner)
		return err
	}

	s.adoptRemoteLines(ctx, owner, merged)
	return nil
}

// Lines returns a copy of the cart rows in insertion order.
func (s *Store) Lines() []Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.clone().Lines
}

// Owner returns the identity the cart currently belongs to.
func (s *Store) Owner() session.Owner {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.Owner
}

// TotalQuantity sums the quantities across all lines.
func (s *Store) TotalQuantity() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.TotalQuantity()
}

// Subtotal sums the line subtotals.
func (s *Store) Subtotal() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.Subtotal()
}

// Notice returns the live transient message, if any.
func (s *Store) Notice() (Notice, bool) {
	return s.notifier.Current()
}

// ClearNotice dismisses the current message.
func (s *Store) ClearNotice() {
	s.notifier.Clear()
}

// Wait blocks until all in-flight remote syncs settle. Used on shutdown
// and by tests.
func (s *Store) Wait() {
	s.wg.Wait()
}

// Close unsubscribes from owner changes and drains in-flight syncs.
func (s *Store) Close() error {
	if s.cancelWatch != nil {
		s.cancelWatch()
		s.cancelWatch = nil
	}
	s.Wait()
	return nil
}

// handleOwnerChange discards in-memory and persisted cart state whenever
// the ambient identity changes, then reloads the new owner's remote cart.
func (s *Store) handleOwnerChange(owner session.Owner) {
	ctx := context.Background()

	s.mu.Lock()
	s.session = Session{Owner: owner}
	s.persistLocked(ctx)
	s.mu.Unlock()

	s.logg.Info(s.logg.WithOwnerID(ctx, owner.UserID), "cart.owner_changed_reset")

	if owner.Authenticated() && s.remote != nil {
		s.spawn(func(syncCtx context.Context) {
			s.refreshFromRemote(syncCtx, owner)
		})
	}
}

// refreshFromRemote overwrites local lines with the remote cart. Known
// ceilings survive by product id; the remote payload carries no stock data.
func (s *Store) refreshFromRemote(ctx context.Context, owner session.Owner) {
	fetchCtx, cancel := context.WithTimeout(ctx, s.syncTimeout)
	defer cancel()

	start := time.Now()
	lines, err := s.remote.Fetch(fetchCtx)
	s.metrics.ObserveSync("fetch", time.Since(start), err)
	if err != nil {
		s.logg.Error(s.syncLogCtx(ctx, owner, ""), "cart.sync.fetch_failed", err)
		return
	}
	s.adoptRemoteLines(ctx, owner, lines)
}

// resync is the recovery path after a failed remote write: re-fetch the
// whole remote cart and let it win, bounding local/remote drift.
func (s *Store) resync(ctx context.Context, owner session.Owner) {
	s.refreshFromRemote(ctx, owner)
}

// adoptRemoteIDs re-fetches the remote cart only to attach backend line
// ids to local lines; local quantities stay authoritative.
func (s *Store) adoptRemoteIDs(ctx context.Context, owner session.Owner) {
	fetchCtx, cancel := context.WithTimeout(ctx, s.syncTimeout)
	defer cancel()

	start := time.Now()
	lines, err := s.remote.Fetch(fetchCtx)
	s.metrics.ObserveSync("fetch", time.Since(start), err)
	if err != nil {
		s.logg.Error(s.syncLogCtx(ctx, owner, ""), "cart.sync.fetch_failed", err)
		return
	}

	byProduct := make(map[string]int64, len(lines))
	for _, line := range lines {
		byProduct[line.ProductID] = line.LineID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.session.Owner.Same(owner) {
		return
	}
	changed := false
	for i := range s.session.Lines {
		if s.session.Lines[i].BackendLineID != nil {
			continue
		}
		if id, ok := byProduct[s.session.Lines[i].ProductID]; ok {
			s.session.Lines[i].BackendLineID = &id
			changed = true
		}
	}
	if changed {
		s.persistLocked(ctx)
	}
}

// adoptRemoteLines replaces local lines with the remote snapshot,
// preserving surrogate-only lines and previously known ceilings.
func (s *Store) adoptRemoteLines(ctx context.Context, owner session.Owner, lines []RemoteLine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.session.Owner.Same(owner) {
		// A later owner change superseded this refresh.
		return
	}

	ceilings := make(map[string]*int, len(s.session.Lines))
	var surrogates []Line
	for _, line := range s.session.Lines {
		if line.Surrogate {
			surrogates = append(surrogates, line.clone())
			continue
		}
		ceilings[line.ProductID] = copyInt(line.MaxQuantity)
	}

	next := make([]Line, 0, len(lines)+len(surrogates))
	for _, remote := range lines {
		id := remote.LineID
		next = append(next, Line{
			ProductID:     remote.ProductID,
			BackendLineID: &id,
			Name:          remote.Name,
			UnitPrice:     remote.UnitPrice,
			Quantity:      remote.Quantity,
			ImageURL:      remote.ImageURL,
			Description:   remote.Description,
			MaxQuantity:   ceilings[remote.ProductID],
		})
	}
	next = append(next, surrogates...)

	s.session.Lines = next
	s.persistLocked(ctx)
}

func (s *Store) persistLocked(ctx context.Context) {
	if err := s.kv.Put(ctx, localstore.NamespaceCart, sessionKey, s.session); err != nil {
		s.logg.Error(ctx, "cart.persist_failed", err)
	}
}

func (s *Store) canSync(owner session.Owner) bool {
	return s.remote != nil && owner.Authenticated()
}

func (s *Store) notifyOutcome(outcome Outcome) {
	switch outcome.Kind {
	case EventRejected:
		s.notifier.Push(LevelWarn, outcome.Message)
	case EventAdded, EventUpdated, EventRemoved, EventCleared:
		s.notifier.Push(LevelInfo, outcome.Message)
	}
}

func (s *Store) observe(op string, outcome Outcome) {
	result := "noop"
	switch outcome.Kind {
	case EventRejected:
		result = "rejected"
	case EventAdded, EventUpdated, EventRemoved, EventCleared:
		result = "accepted"
	}
	s.metrics.ObserveOperation(op, result)
}

func (s *Store) spawn(fn func(ctx context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.syncTimeout)
		defer cancel()
		fn(ctx)
	}()
}

func (s *Store) syncLogCtx(ctx context.Context, owner session.Owner, productID string) context.Context {
	ctx = s.logg.WithOwnerID(ctx, owner.UserID)
	if productID != "" {
		ctx = s.logg.WithProductID(ctx, productID)
	}
	return ctx
}
