package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"realtime-service/internal/apperrors"
	"realtime-service/internal/auth"
	"realtime-service/internal/call"
	"realtime-service/internal/delivery"
	"realtime-service/internal/lifecycle"
	"realtime-service/internal/models"
	"realtime-service/internal/observability"
	"realtime-service/internal/telemetry"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Gateway terminates the class-scoped websocket endpoints. Each accepted
// connection becomes a session: the lifecycle coordinator registers it, the
// read loop dispatches client frames into the delivery pipeline and the call
// controller, and close tears the session down again.
type Gateway struct {
	hub         *Hub
	verifier    *auth.Verifier
	coordinator *lifecycle.Coordinator
	pipeline    *delivery.Pipeline
	calls       *call.Controller
	audit       *telemetry.AuditEmitter
}

// NewGateway constructs a Gateway.
func NewGateway(hub *Hub, verifier *auth.Verifier, coordinator *lifecycle.Coordinator, pipeline *delivery.Pipeline, calls *call.Controller, audit *telemetry.AuditEmitter) *Gateway {
	return &Gateway{
		hub:         hub,
		verifier:    verifier,
		coordinator: coordinator,
		pipeline:    pipeline,
		calls:       calls,
		audit:       audit,
	}
}

// HandleDirect serves /ws/direct connections.
func (g *Gateway) HandleDirect(c *gin.Context) { g.handle(c, models.ClassDirect) }

// HandleGroup serves /ws/group connections.
func (g *Gateway) HandleGroup(c *gin.Context) { g.handle(c, models.ClassGroup) }

// HandleCall serves /ws/call connections.
func (g *Gateway) HandleCall(c *gin.Context) { g.handle(c, models.ClassCall) }

func (g *Gateway) handle(c *gin.Context, class models.ConnectionClass) {
	ctx, span := otel.Tracer("realtime-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	identity, err := g.authenticate(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	traceID := span.SpanContext().TraceID().String()
	requestID := observability.RequestIDFromRequest(c.Request)
	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      identity.UserID,
		Email:       identity.Email,
		Class:       class,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   requestID,
		TraceID:     traceID,
		ConnectedAt: time.Now(),
	}

	// The connection must be reachable through the hub before OnOpen runs so
	// the pending-message flush can write to it.
	g.hub.Register(info.ConnID, conn, info)
	if _, err := g.coordinator.OnOpen(ctx, identity, info.ConnID, class); err != nil {
		g.hub.Unregister(info.ConnID)
		conn.Close()
		return
	}

	classLabel := string(class)
	observability.IncWSActive(classLabel)
	observability.IncWSEvent(classLabel, "ws_connect")
	_ = observability.PublishEvent(ctx, routingKey(class), observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_connect",
		Payload:   wsEventPayload(info, "ws_connect", 0, ""),
	}, observability.BuildHeaders(requestID, traceID))
	g.audit.Emit(ctx, "INFO",
		fmt.Sprintf("user %d connected (%s)", identity.UserID, classLabel),
		requestID, &identity.UserID)

	go g.readLoop(conn, info)
}

func (g *Gateway) readLoop(conn *websocket.Conn, info ConnInfo) {
	// Detached from the handshake request; the connection outlives it.
	ctx := context.Background()
	classLabel := string(info.Class)
	var closeReason string

	defer func() {
		g.coordinator.OnClose(ctx, info.ConnID)
		g.hub.Unregister(info.ConnID)
		conn.Close()
		observability.DecWSActive(classLabel)
		observability.IncWSEvent(classLabel, "ws_disconnect")
		_ = observability.PublishEvent(ctx, routingKey(info.Class), observability.EventEnvelope{
			EventType: "ws_events",
			EventName: "ws_disconnect",
			Payload:   wsEventPayload(info, "ws_disconnect", time.Since(info.ConnectedAt), closeReason),
		}, observability.BuildHeaders(info.RequestID, info.TraceID))
		g.audit.Emit(ctx, "INFO",
			fmt.Sprintf("user %d disconnected (%s)", info.UserID, classLabel),
			info.RequestID, &info.UserID)
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent(classLabel, "ws_error")
			}
			return
		}

		var frame clientFrame
		if err := json.Unmarshal(payload, &frame); err != nil {
			g.sendError(info.ConnID, "malformed frame")
			continue
		}

		observability.IncWSEvent(classLabel, frame.Type)
		g.dispatch(ctx, info, frame)
	}
}

// clientFrame is the client-to-server message envelope. Only the fields
// relevant to the frame type are set.
type clientFrame struct {
	Type           string          `json:"type"`
	ConversationID string          `json:"conversation_id,omitempty"`
	Content        string          `json:"content,omitempty"`
	MessageID      string          `json:"message_id,omitempty"`
	CallID         string          `json:"call_id,omitempty"`
	CallType       models.CallType `json:"call_type,omitempty"`
	CalleeID       int64           `json:"callee_id,omitempty"`
	CallerID       int64           `json:"caller_id,omitempty"`
	PeerID         int64           `json:"peer_id,omitempty"`
	Data           json.RawMessage `json:"data,omitempty"`
}

func (g *Gateway) dispatch(ctx context.Context, info ConnInfo, frame clientFrame) {
	switch frame.Type {
	case "send_message":
		g.onSendMessage(ctx, info, frame)
	case "mark_read":
		g.onMarkRead(ctx, info, frame)
	case "call_initiate":
		g.onCallInitiate(ctx, info, frame)
	case "call_accept":
		g.onCallAccept(ctx, info, frame)
	case "call_reject":
		g.onCallReject(ctx, info, frame)
	case "call_end":
		g.onCallEnd(ctx, info, frame)
	case "signal":
		g.onSignal(ctx, info, frame)
	default:
		g.sendError(info.ConnID, "unknown frame type")
	}
}

func (g *Gateway) onSendMessage(ctx context.Context, info ConnInfo, frame clientFrame) {
	if info.Class == models.ClassCall {
		g.sendError(info.ConnID, "messages are not supported on call connections")
		return
	}
	msg, err := g.pipeline.Send(ctx, frame.ConversationID, info.UserID, frame.Content)
	if err != nil {
		g.sendAppError(info.ConnID, err)
		return
	}
	// Echo direct messages to the sender so the submitting device sees the
	// stored message with its id. Group messages already reach the sender
	// through the conversation room.
	if msg.RecipientID != nil {
		_ = g.hub.SendToConn(info.ConnID, models.Event{Type: models.EventNewMessage, Message: &msg})
	}
}

func (g *Gateway) onMarkRead(ctx context.Context, info ConnInfo, frame clientFrame) {
	if info.Class == models.ClassCall {
		g.sendError(info.ConnID, "messages are not supported on call connections")
		return
	}
	if _, err := g.pipeline.MarkRead(ctx, frame.MessageID, info.UserID); err != nil {
		g.sendAppError(info.ConnID, err)
	}
}

func (g *Gateway) onCallInitiate(ctx context.Context, info ConnInfo, frame clientFrame) {
	if info.Class != models.ClassCall {
		g.sendError(info.ConnID, "call frames require a call connection")
		return
	}
	started, calleeSessions, err := g.calls.Initiate(ctx, info.UserID, frame.CalleeID, frame.CallType)
	if err != nil {
		g.sendAppError(info.ConnID, err)
		return
	}
	g.hub.SendToSessions(calleeSessions, models.Event{
		Type:       models.EventIncomingCall,
		Call:       &started,
		FromUserID: info.UserID,
	})
	_ = g.hub.SendToConn(info.ConnID, models.Event{Type: models.EventCallInitiated, Call: &started})
}

func (g *Gateway) onCallAccept(ctx context.Context, info ConnInfo, frame clientFrame) {
	if info.Class != models.ClassCall {
		g.sendError(info.ConnID, "call frames require a call connection")
		return
	}
	accepted, callerSessions, err := g.calls.Accept(ctx, frame.CallID, frame.CallerID, info.UserID)
	if err != nil {
		g.sendAppError(info.ConnID, err)
		return
	}
	event := models.Event{Type: models.EventCallAccepted, Call: &accepted, FromUserID: info.UserID}
	g.hub.SendToSessions(callerSessions, event)
	_ = g.hub.SendToConn(info.ConnID, event)
}

func (g *Gateway) onCallReject(ctx context.Context, info ConnInfo, frame clientFrame) {
	if info.Class != models.ClassCall {
		g.sendError(info.ConnID, "call frames require a call connection")
		return
	}
	rejected, err := g.calls.Reject(ctx, frame.CallID)
	if err != nil {
		g.sendAppError(info.ConnID, err)
		return
	}
	g.notifyPeer(ctx, frame.PeerID, models.Event{
		Type:       models.EventCallRejected,
		Call:       &rejected,
		FromUserID: info.UserID,
	})
}

func (g *Gateway) onCallEnd(ctx context.Context, info ConnInfo, frame clientFrame) {
	if info.Class != models.ClassCall {
		g.sendError(info.ConnID, "call frames require a call connection")
		return
	}
	ended, err := g.calls.End(ctx, frame.CallID)
	if err != nil {
		g.sendAppError(info.ConnID, err)
		return
	}
	g.notifyPeer(ctx, frame.PeerID, models.Event{
		Type:       models.EventCallEnded,
		Call:       &ended,
		FromUserID: info.UserID,
	})
}

// onSignal relays an ephemeral payload (offer, answer, ICE candidate) to the
// peer's call sessions without persisting anything.
func (g *Gateway) onSignal(ctx context.Context, info ConnInfo, frame clientFrame) {
	if info.Class != models.ClassCall {
		g.sendError(info.ConnID, "call frames require a call connection")
		return
	}
	sessions, err := g.calls.SessionsFor(ctx, frame.PeerID)
	if err != nil {
		g.sendAppError(info.ConnID, err)
		return
	}
	observability.IncCallSignal("relay")
	g.hub.SendToSessions(sessions, models.Event{
		Type:       models.EventSignal,
		FromUserID: info.UserID,
		Data:       frame.Data,
	})
}

// notifyPeer is best-effort: a peer with no sessions left simply misses the
// event.
func (g *Gateway) notifyPeer(ctx context.Context, peerID int64, event models.Event) {
	if peerID == 0 {
		return
	}
	sessions, err := g.calls.SessionsFor(ctx, peerID)
	if err != nil {
		return
	}
	g.hub.SendToSessions(sessions, event)
}

func (g *Gateway) sendError(connID, message string) {
	_ = g.hub.SendToConn(connID, models.Event{Type: models.EventError, Error: message})
}

func (g *Gateway) sendAppError(connID string, err error) {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		g.sendError(connID, appErr.Message)
		return
	}
	g.sendError(connID, "internal error")
}

func (g *Gateway) authenticate(c *gin.Context) (models.Identity, error) {
	token := c.GetHeader("Authorization")
	if token != "" {
		parts := strings.SplitN(token, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return g.verifier.Verify(parts[1])
		}
		return models.Identity{}, fmt.Errorf("invalid authorization header")
	}
	if token = c.Query("token"); token != "" {
		return g.verifier.Verify(token)
	}
	return models.Identity{}, fmt.Errorf("missing token")
}
