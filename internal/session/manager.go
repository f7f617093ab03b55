package session

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pawmart/storefront/internal/backend"
	pkgerrors "github.com/pawmart/storefront/pkg/errors"
	"github.com/pawmart/storefront/pkg/localstore"
	"github.com/pawmart/storefront/pkg/logger"
)

const markerKey = "current"

type authAPI interface {
	Login(ctx context.Context, usernameOrEmail, password string) (*backend.User, string, error)
	Logout(ctx context.Context) error
	CurrentUser(ctx context.Context) (*backend.User, error)
}

// marker is the persisted last-known-owner record.
type marker struct {
	Owner Owner  `json:"owner"`
	Token string `json:"token,omitempty"`
}

// Manager is the ambient authentication context the rest of the engine
// observes. It owns the session marker in the local store and notifies
// watchers whenever the owner identity changes.
type Manager struct {
	mu       sync.RWMutex
	owner    Owner
	token    string
	nextID   int
	watchers map[int]func(Owner)

	api   authAPI
	store localstore.KV
	logg  *logger.Logger
	now   func() time.Time
}

type ManagerParams struct {
	API    authAPI
	Store  localstore.KV
	Logger *logger.Logger
}

func NewManager(params ManagerParams) (*Manager, error) {
	if params.API == nil {
		return nil, fmt.Errorf("auth api required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("local store required")
	}
	return &Manager{
		owner:    Anonymous,
		watchers: map[int]func(Owner){},
		api:      params.API,
		store:    params.Store,
		logg:     params.Logger,
		now:      time.Now,
	}, nil
}

// Current returns the active owner identity.
func (m *Manager) Current() Owner {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.owner
}

// Watch registers a callback fired on every owner change. The returned
// cancel func unregisters it.
func (m *Manager) Watch(fn func(Owner)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.watchers[id] = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.watchers, id)
		m.mu.Unlock()
	}
}

// Restore re-derives the owner from the persisted marker after a restart.
// A marker whose token has expired, or one the backend no longer honors,
// degrades to anonymous. Backend unreachability keeps the marker owner so
// the shopper can keep browsing their cached state.
func (m *Manager) Restore(ctx context.Context) {
	var record marker
	ok, err := m.store.Get(ctx, localstore.NamespaceSession, markerKey, &record)
	if err != nil && m.logg != nil {
		m.logg.Error(ctx, "session.restore.read_marker", err)
	}
	if !ok || !record.Owner.Authenticated() {
		return
	}

	if record.Token != "" && m.tokenExpired(record.Token) {
		if m.logg != nil {
			m.logg.Info(ctx, "session.restore.token_expired")
		}
		m.dropMarker(ctx)
		return
	}

	user, err := m.api.CurrentUser(ctx)
	if err != nil {
		typed := pkgerrors.As(err)
		if typed != nil && typed.Code() == pkgerrors.CodeDependency {
			if m.logg != nil {
				m.logg.Warn(m.logg.WithOwnerID(ctx, record.Owner.UserID), "session.restore.backend_unreachable")
			}
			m.setOwner(ctx, record.Owner, record.Token)
			return
		}
		m.dropMarker(ctx)
		return
	}
	m.setOwner(ctx, ownerFromUser(user), record.Token)
}

// Login authenticates and switches the owner identity.
func (m *Manager) Login(ctx context.Context, usernameOrEmail, password string) (Owner, error) {
	user, token, err := m.api.Login(ctx, usernameOrEmail, password)
	if err != nil {
		return Anonymous, err
	}
	owner := ownerFromUser(user)
	if err := m.store.Put(ctx, localstore.NamespaceSession, markerKey, marker{Owner: owner, Token: token}); err != nil && m.logg != nil {
		m.logg.Error(ctx, "session.login.persist_marker", err)
	}
	m.setOwner(ctx, owner, token)
	return owner, nil
}

// Logout drops the backend session best-effort and always resets the local
// owner to anonymous.
func (m *Manager) Logout(ctx context.Context) {
	if err := m.api.Logout(ctx); err != nil && m.logg != nil {
		m.logg.Warn(m.logg.WithField(ctx, "error", err.Error()), "session.logout.remote_failed")
	}
	m.dropMarker(ctx)
}

func (m *Manager) dropMarker(ctx context.Context) {
	if err := m.store.Delete(ctx, localstore.NamespaceSession, markerKey); err != nil && m.logg != nil {
		m.logg.Error(ctx, "session.drop_marker", err)
	}
	m.setOwner(ctx, Anonymous, "")
}

func (m *Manager) setOwner(ctx context.Context, owner Owner, token string) {
	m.mu.Lock()
	changed := !m.owner.Same(owner)
	m.owner = owner
	m.token = token
	var fns []func(Owner)
	if changed {
		for _, fn := range m.watchers {
			fns = append(fns, fn)
		}
	}
	m.mu.Unlock()

	if changed && m.logg != nil {
		m.logg.Info(m.logg.WithOwnerID(ctx, owner.UserID), "session.owner_changed")
	}
	for _, fn := range fns {
		fn(owner)
	}
}

// tokenExpired inspects the exp claim without verifying the signature; the
// backend remains the authority, this only short-circuits obviously stale
// markers.
func (m *Manager) tokenExpired(token string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(m.now())
}

func ownerFromUser(user *backend.User) Owner {
	if user == nil || user.ID == 0 {
		return Anonymous
	}
	name := user.FirstName
	if name == "" {
		name = user.Username
	}
	return Owner{
		UserID: strconv.FormatInt(user.ID, 10),
		Email:  user.Email,
		Name:   name,
	}
}
