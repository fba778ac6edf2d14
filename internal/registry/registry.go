package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/c-pro/geche"
	"github.com/redis/go-redis/v9"

	"realtime-service/internal/models"
	"realtime-service/internal/observability"
)

const (
	// DefaultTTL bounds how long a session survives without being touched.
	DefaultTTL = 24 * time.Hour

	sessionKeyPrefix = "session:"
	userKeyPrefix    = "user_sessions:"
)

// SessionRegistry tracks which connections belong to which user. A user is
// online iff it has at least one live session.
type SessionRegistry interface {
	Register(ctx context.Context, userID int64, connID string, class models.ConnectionClass) (models.Session, error)
	Get(ctx context.Context, connID string) (models.Session, bool)
	SessionsOf(ctx context.Context, userID int64) []models.Session
	Remove(ctx context.Context, connID string) (models.Session, bool)
	HasActive(ctx context.Context, userID int64) bool
}

// Registry is a two-tier session store: a fast in-process TTL cache backed by
// a shared Redis tier for cross-process visibility. Reads prefer the fast tier
// and fall back to the shared tier, repopulating the fast tier on a hit.
type Registry struct {
	sessions geche.Geche[string, models.Session]

	mu        sync.Mutex
	userConns map[int64]map[string]struct{}

	shared *redis.Client
	ttl    time.Duration
}

// New builds the registry. When the shared tier is unreachable the registry
// degrades to fast-tier-only presence instead of failing the boot.
func New(ctx context.Context, shared *redis.Client) *Registry {
	r := &Registry{
		sessions:  geche.NewMapTTLCache[string, models.Session](ctx, DefaultTTL, time.Minute),
		userConns: make(map[int64]map[string]struct{}),
		shared:    shared,
		ttl:       DefaultTTL,
	}
	if shared != nil {
		if err := shared.Ping(ctx).Err(); err != nil {
			log.Printf("session registry: shared cache unreachable, running local-only: %v", err)
			r.shared = nil
		}
	}
	return r
}

func sessionKey(connID string) string {
	return sessionKeyPrefix + connID
}

func userKey(userID int64) string {
	return fmt.Sprintf("%s%d", userKeyPrefix, userID)
}

// Register creates a session keyed by connection id and appends it to the
// owner's session set. Re-registering the same connection replaces in place.
func (r *Registry) Register(ctx context.Context, userID int64, connID string, class models.ConnectionClass) (models.Session, error) {
	if prev, ok := r.Get(ctx, connID); ok && prev.UserID != userID {
		r.detach(ctx, prev.UserID, connID)
	}

	sess := models.Session{
		ConnID:    connID,
		UserID:    userID,
		Class:     class,
		CreatedAt: time.Now().UTC(),
	}

	r.sessions.Set(connID, sess)
	r.mu.Lock()
	if _, ok := r.userConns[userID]; !ok {
		r.userConns[userID] = make(map[string]struct{})
	}
	r.userConns[userID][connID] = struct{}{}
	r.mu.Unlock()
	observability.IncRegistryOp("fast", "register")

	if r.shared != nil {
		data, err := json.Marshal(sess)
		if err != nil {
			return sess, err
		}
		pipe := r.shared.TxPipeline()
		pipe.Set(ctx, sessionKey(connID), data, r.ttl)
		pipe.SAdd(ctx, userKey(userID), connID)
		pipe.Expire(ctx, userKey(userID), r.ttl)
		if _, err := pipe.Exec(ctx); err != nil {
			// Presence stays correct in-process; cross-process visibility
			// catches up on the next write.
			log.Printf("session registry: shared tier write failed for %s: %v", connID, err)
		} else {
			observability.IncRegistryOp("shared", "register")
		}
	}
	return sess, nil
}

// Get returns the session for a connection id, refreshing its TTL.
func (r *Registry) Get(ctx context.Context, connID string) (models.Session, bool) {
	if sess, err := r.sessions.Get(connID); err == nil {
		r.sessions.Set(connID, sess)
		if r.shared != nil {
			r.shared.Expire(ctx, sessionKey(connID), r.ttl)
		}
		observability.IncRegistryOp("fast", "hit")
		return sess, true
	}

	if r.shared == nil {
		return models.Session{}, false
	}

	data, err := r.shared.Get(ctx, sessionKey(connID)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("session registry: shared tier read failed for %s: %v", connID, err)
		}
		return models.Session{}, false
	}

	var sess models.Session
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		log.Printf("session registry: corrupt session entry for %s: %v", connID, err)
		return models.Session{}, false
	}

	r.sessions.Set(connID, sess)
	r.mu.Lock()
	if _, ok := r.userConns[sess.UserID]; !ok {
		r.userConns[sess.UserID] = make(map[string]struct{})
	}
	r.userConns[sess.UserID][connID] = struct{}{}
	r.mu.Unlock()
	observability.IncRegistryOp("shared", "hit")
	return sess, true
}

// SessionsOf returns the user's current live session set. An empty result is a
// normal offline state, not a failure. The snapshot is eventually consistent
// with concurrent registrations.
func (r *Registry) SessionsOf(ctx context.Context, userID int64) []models.Session {
	seen := make(map[string]struct{})
	var sessions []models.Session

	r.mu.Lock()
	ids := make([]string, 0, len(r.userConns[userID]))
	for id := range r.userConns[userID] {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	for _, id := range ids {
		sess, err := r.sessions.Get(id)
		if err != nil {
			// Expired in the fast tier; drop from the local set.
			r.mu.Lock()
			delete(r.userConns[userID], id)
			r.mu.Unlock()
			continue
		}
		seen[id] = struct{}{}
		sessions = append(sessions, sess)
	}

	if r.shared == nil {
		return sessions
	}

	members, err := r.shared.SMembers(ctx, userKey(userID)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("session registry: shared tier scan failed for user %d: %v", userID, err)
		}
		return sessions
	}

	for _, id := range members {
		if _, ok := seen[id]; ok {
			continue
		}
		if sess, ok := r.Get(ctx, id); ok {
			sessions = append(sessions, sess)
			continue
		}
		// Session key expired but the set member lingered.
		r.shared.SRem(ctx, userKey(userID), id)
	}
	return sessions
}

// Remove deletes the session and detaches it from the owner's set, returning
// the removed session so callers can detect an online-to-offline transition.
func (r *Registry) Remove(ctx context.Context, connID string) (models.Session, bool) {
	sess, ok := r.Get(ctx, connID)
	if !ok {
		return models.Session{}, false
	}

	_ = r.sessions.Del(connID)
	r.detach(ctx, sess.UserID, connID)
	observability.IncRegistryOp("fast", "remove")
	return sess, true
}

// HasActive reports whether the user has at least one live session.
func (r *Registry) HasActive(ctx context.Context, userID int64) bool {
	return len(r.SessionsOf(ctx, userID)) > 0
}

func (r *Registry) detach(ctx context.Context, userID int64, connID string) {
	r.mu.Lock()
	if conns, ok := r.userConns[userID]; ok {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(r.userConns, userID)
		}
	}
	r.mu.Unlock()

	if r.shared != nil {
		pipe := r.shared.TxPipeline()
		pipe.Del(ctx, sessionKey(connID))
		pipe.SRem(ctx, userKey(userID), connID)
		if _, err := pipe.Exec(ctx); err != nil {
			log.Printf("session registry: shared tier cleanup failed for %s: %v", connID, err)
		}
	}
}
