package lifecycle

import (
	"context"
	"log"

	"realtime-service/internal/directory"
	"realtime-service/internal/models"
	"realtime-service/internal/observability"
	"realtime-service/internal/registry"
	"realtime-service/internal/repositories"
)

// Emitter is the slice of the hub the coordinator drives on connect.
type Emitter interface {
	SendToConn(connID string, event models.Event) error
	JoinRoom(roomID, connID string)
}

// Coordinator orchestrates connection open and close: session registration,
// the denormalized online flag, the pending-message flush and room joins.
type Coordinator struct {
	sessions  registry.SessionRegistry
	users     repositories.UserRepository
	messages  repositories.MessageRepository
	directory *directory.Directory
	emitter   Emitter
}

// New constructs a Coordinator.
func New(sessions registry.SessionRegistry, users repositories.UserRepository, messages repositories.MessageRepository, dir *directory.Directory, emitter Emitter) *Coordinator {
	return &Coordinator{
		sessions:  sessions,
		users:     users,
		messages:  messages,
		directory: dir,
		emitter:   emitter,
	}
}

// OnOpen runs after the transport layer authenticated the connection. It
// registers the session, flips the user online, replays queued messages and
// joins the connection to its conversation rooms.
func (c *Coordinator) OnOpen(ctx context.Context, identity models.Identity, connID string, class models.ConnectionClass) (models.Session, error) {
	if err := c.users.EnsureUser(ctx, identity.UserID, identity.Email); err != nil {
		return models.Session{}, err
	}

	sess, err := c.sessions.Register(ctx, identity.UserID, connID, class)
	if err != nil {
		return models.Session{}, err
	}

	if err := c.users.SetOnline(ctx, identity.UserID, true); err != nil {
		// Presence flag is denormalized convenience state; the registry stays
		// authoritative.
		log.Printf("lifecycle: online flag update failed for user %d: %v", identity.UserID, err)
	}

	c.flushPending(ctx, identity.UserID, connID)
	c.joinRooms(ctx, identity.UserID, connID, class)
	return sess, nil
}

// OnClose removes the session and, when it was the user's last one, clears the
// online flag and stamps last seen. Close-path failures are logged, never
// propagated.
func (c *Coordinator) OnClose(ctx context.Context, connID string) {
	sess, ok := c.sessions.Remove(ctx, connID)
	if !ok {
		return
	}

	if c.sessions.HasActive(ctx, sess.UserID) {
		return
	}
	if err := c.users.SetOnline(ctx, sess.UserID, false); err != nil {
		log.Printf("lifecycle: offline flag update failed for user %d: %v", sess.UserID, err)
	}
}

// flushPending replays queued undelivered messages to the fresh connection,
// marking each delivered after it was emitted. If the client goes away
// mid-flush the remainder stays undelivered and is retried on the next
// connect.
func (c *Coordinator) flushPending(ctx context.Context, userID int64, connID string) {
	pending, err := c.messages.PendingForUser(ctx, userID)
	if err != nil {
		log.Printf("lifecycle: pending lookup failed for user %d: %v", userID, err)
		return
	}

	for i := range pending {
		msg := pending[i]
		if err := c.emitter.SendToConn(connID, models.Event{Type: models.EventNewMessage, Message: &msg}); err != nil {
			log.Printf("lifecycle: flush interrupted for user %d at message %s: %v", userID, msg.ID, err)
			return
		}
		if _, err := c.messages.MarkDelivered(ctx, msg.ID); err != nil {
			log.Printf("lifecycle: mark delivered failed for message %s: %v", msg.ID, err)
			return
		}
		observability.IncMessageDelivered("flush")
	}
}

// joinRooms subscribes the connection to every conversation room of the
// class's type. Membership is read from the directory, never from transport
// state.
func (c *Coordinator) joinRooms(ctx context.Context, userID int64, connID string, class models.ConnectionClass) {
	roomType, ok := class.RoomType()
	if !ok {
		return
	}

	convs, err := c.directory.ListForUser(ctx, userID, &roomType)
	if err != nil {
		log.Printf("lifecycle: room lookup failed for user %d: %v", userID, err)
		return
	}
	for _, conv := range convs {
		c.emitter.JoinRoom(conv.ID, connID)
	}
}
