package orchestrator

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/guahanweb/mcp-server-platform/session"
)

// DefaultSessionTimeout is how long a session may sit idle before
// Cleanup considers it expired.
const DefaultSessionTimeout = 30 * time.Minute

// SessionManager owns session lifecycle against a session.Store.
type SessionManager struct {
	store session.Store
}

// NewSessionManager builds a SessionManager backed by store.
func NewSessionManager(store session.Store) *SessionManager {
	return &SessionManager{store: store}
}

// CreateSession allocates a session, generating a
// "session_{epochMillis}_{9-char random}" id when sessionID is empty.
func (m *SessionManager) CreateSession(ctx context.Context, userID, userName, sessionID string) (session.Session, error) {
	if sessionID == "" {
		sessionID = generateSessionID()
	}
	return m.store.CreateSession(ctx, sessionID, userID, userName, time.Now().UTC())
}

// GetSession loads an existing session by id.
func (m *SessionManager) GetSession(ctx context.Context, sessionID string) (session.Session, error) {
	return m.store.LoadSession(ctx, sessionID)
}

// GetOrCreateSession loads sessionID if it already exists, otherwise
// creates it. A caller-supplied sessionID is honored either way; an
// empty one always results in a freshly generated id.
func (m *SessionManager) GetOrCreateSession(ctx context.Context, sessionID, userID, userName string) (session.Session, error) {
	if sessionID != "" {
		sess, err := m.store.LoadSession(ctx, sessionID)
		if err == nil {
			return sess, nil
		}
		if !errors.Is(err, session.ErrNotFound) {
			return session.Session{}, err
		}
	}
	return m.CreateSession(ctx, userID, userName, sessionID)
}

// UpdateSession writes sess through to the store, stamping UpdatedAt.
func (m *SessionManager) UpdateSession(ctx context.Context, sess session.Session) (session.Session, error) {
	return m.store.SaveSession(ctx, sess)
}

// DeleteSession removes sessionID, reporting whether it existed.
func (m *SessionManager) DeleteSession(ctx context.Context, sessionID string) (bool, error) {
	return m.store.DeleteSession(ctx, sessionID)
}

// AddMessage appends entry to sess's conversation history and
// persists the session.
func (m *SessionManager) AddMessage(ctx context.Context, sess session.Session, entry session.ConversationEntry) (session.Session, error) {
	sess.ConversationHistory = append(sess.ConversationHistory, entry)
	return m.store.SaveSession(ctx, sess)
}

// Cleanup removes every session whose last update predates
// now-timeout, defaulting timeout to DefaultSessionTimeout.
func (m *SessionManager) Cleanup(ctx context.Context, timeout time.Duration) (int, error) {
	if timeout <= 0 {
		timeout = DefaultSessionTimeout
	}
	return m.store.Cleanup(ctx, time.Now().UTC().Add(-timeout))
}

// Count reports how many sessions the backing store currently holds.
func (m *SessionManager) Count(ctx context.Context) (int, error) {
	return m.store.Count(ctx)
}

// generateSessionID builds a "session_{epochMillis}_{9-char random}"
// id, deriving the random suffix from a uuid rather than introducing a
// separate random-string dependency.
func generateSessionID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "session_" + strconv.FormatInt(time.Now().UnixMilli(), 10) + "_" + suffix[:9]
}
