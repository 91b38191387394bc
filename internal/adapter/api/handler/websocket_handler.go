package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"marketchat/internal/domain/entity"
	"marketchat/internal/domain/repository"
	"marketchat/internal/infrastructure/firebase"
	ws "marketchat/internal/infrastructure/websocket"
	"marketchat/internal/usecase"
	"marketchat/pkg/errors"
	"marketchat/pkg/response"
)

// WebSocketHandler attaches a ChatSession to every authenticated
// connection. The socket is both the realtime delivery channel (message
// and inbox snapshots pushed as they arrive) and the command channel
// (select, send, leave).
type WebSocketHandler struct {
	wsManager   *ws.Manager
	authClient  *firebase.FirebaseAuthClient
	chatUseCase *usecase.ChatUseCase
	messageRepo repository.MessageRepository
	summaryRepo repository.SummaryRepository
}

var upgrader = gorillaws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // TODO: restrict to the app origins before launch
	},
}

func NewWebSocketHandler(
	wsManager *ws.Manager,
	authClient *firebase.FirebaseAuthClient,
	chatUseCase *usecase.ChatUseCase,
	messageRepo repository.MessageRepository,
	summaryRepo repository.SummaryRepository,
) *WebSocketHandler {
	return &WebSocketHandler{
		wsManager:   wsManager,
		authClient:  authClient,
		chatUseCase: chatUseCase,
		messageRepo: messageRepo,
		summaryRepo: summaryRepo,
	}
}

type clientFrame struct {
	Type      string `json:"type"`
	PartnerID string `json:"partner_id,omitempty"`
	Body      string `json:"body,omitempty"`
}

type serverFrame struct {
	Type        string                      `json:"type"`
	Messages    []*entity.Message           `json:"messages"`
	ActiveChats []*entity.ActiveChatSummary `json:"active_chats"`
	Loading     *bool                       `json:"loading,omitempty"`
	Error       *frameError                 `json:"error,omitempty"`
}

type frameError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// socketSink marshals session events onto its own connection's send
// channel. It holds the client directly: routing by uid would let a
// second device from the same user capture this session's frames.
type socketSink struct {
	client *ws.Client
}

func (s *socketSink) push(frame serverFrame) {
	payload, err := json.Marshal(frame)
	if err != nil {
		log.Printf("Failed to marshal frame for user %s: %v", s.client.UserID, err)
		return
	}
	s.client.Enqueue(payload)
}

func (s *socketSink) OnMessages(messages []*entity.Message) {
	if messages == nil {
		messages = []*entity.Message{}
	}
	s.push(serverFrame{Type: "messages", Messages: messages})
}

func (s *socketSink) OnActiveChats(summaries []*entity.ActiveChatSummary) {
	if summaries == nil {
		summaries = []*entity.ActiveChatSummary{}
	}
	s.push(serverFrame{Type: "active_chats", ActiveChats: summaries})
}

func (s *socketSink) OnLoading(loading bool) {
	s.push(serverFrame{Type: "loading", Loading: &loading})
}

func (s *socketSink) OnError(err error) {
	code, message := "INTERNAL_ERROR", "Something went wrong"
	if appErr, ok := err.(*errors.AppError); ok {
		code, message = appErr.Code, appErr.Message
	}
	s.push(serverFrame{Type: "error", Error: &frameError{Code: code, Message: message}})
}

// HandleWebSocket authenticates the connection, wires up the session
// and runs the pumps. The token travels as a query parameter because
// browser websocket clients cannot set headers.
func (h *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		return response.Error(c, errors.Unauthorized("Authentication token is required", nil))
	}

	uid, err := h.authClient.VerifyToken(c.Request().Context(), token)
	if err != nil {
		return response.Error(c, errors.Unauthorized("Invalid or expired token", err))
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return response.Error(c, errors.Internal("Failed to upgrade connection", err))
	}

	// The session outlives the upgrade request, so it gets its own
	// context tied to the connection.
	ctx, cancel := context.WithCancel(context.Background())

	client := &ws.Client{
		UserID: uid,
		Conn:   conn,
		Send:   make(chan []byte, 256),
	}

	identity := usecase.NewSessionIdentity()
	sink := &socketSink{client: client}
	session := usecase.NewChatSession(identity, h.chatUseCase, h.messageRepo, h.summaryRepo, sink)

	client.OnMessage = func(payload []byte) {
		h.handleFrame(ctx, session, uid, payload, sink)
	}
	client.OnClose = func() {
		session.Close()
		identity.SignOut()
		cancel()
	}

	h.wsManager.Register <- client

	go client.ReadPump(h.wsManager)
	go client.WritePump()

	// Sign-in happens after registration so the first inbox snapshot
	// has a live socket to land on.
	currentUser, err := h.chatUseCase.LoadCurrentUser(ctx, uid)
	if err != nil {
		log.Printf("Failed to load profile for user %s: %v", uid, err)
		currentUser = &usecase.CurrentUser{ID: uid}
	}
	session.Start(ctx)
	identity.SignIn(currentUser)

	return nil
}

func (h *WebSocketHandler) handleFrame(ctx context.Context, session *usecase.ChatSession, uid string, payload []byte, sink *socketSink) {
	var frame clientFrame
	if err := json.Unmarshal(payload, &frame); err != nil {
		sink.OnError(errors.BadRequest("Malformed frame", err))
		return
	}

	switch frame.Type {
	case "select_conversation":
		if frame.PartnerID == uid {
			// Rejected before the partner lookup touches the store.
			sink.OnError(errors.SelfChatRejected())
			return
		}
		if err := h.chatUseCase.AllowConversationSelect(uid); err != nil {
			sink.OnError(err)
			return
		}
		partner, err := h.chatUseCase.GetChatPartner(ctx, frame.PartnerID)
		if err != nil {
			sink.OnError(err)
			return
		}
		session.SelectConversation(partner)

	case "send_message":
		session.Send(ctx, frame.Body)

	case "leave_conversation":
		session.LeaveConversation()

	default:
		sink.OnError(errors.BadRequest("Unknown frame type: "+frame.Type, nil))
	}
}
