package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nytron88/streamix-sub000/internal/domain"
	"github.com/nytron88/streamix-sub000/internal/gateway"
	"github.com/nytron88/streamix-sub000/internal/hub"
	pkglog "github.com/nytron88/streamix-sub000/pkg/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSHandler upgrades HTTP requests into gateway connections and routes
// client frames to the gateway service.
type WSHandler struct {
	service *gateway.Service
	wsCfg   hub.Config
}

func NewWSHandler(svc *gateway.Service, wsCfg hub.Config) *WSHandler {
	return &WSHandler{
		service: svc,
		wsCfg:   wsCfg,
	}
}

// HandleWebSocket serves GET /ws. The bearer token comes from the `token`
// query parameter or the Authorization header.
func (h *WSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		l := pkglog.L()
		l.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := hub.NewClient(uuid.New().String(), conn, h.wsCfg)

	// Subscriptions opened here must outlive this request: the request
	// context is cancelled as soon as this handler returns, which would
	// tear the topic pumps down under the live connection.
	if err := h.service.HandleConnect(context.Background(), client, token); err != nil {
		l := pkglog.L()
		l.Warn().Err(err).Str(pkglog.FieldConnID, client.ID).Msg("connection rejected")
		h.reject(conn, client)
		return
	}

	go client.WritePump()

	go func() {
		client.ReadPump(h.handleMessage)
		h.service.HandleDisconnect(context.Background(), client)
	}()
}

// reject flushes any queued frames (the rejection reason) synchronously,
// then closes the connection with a policy-violation close frame so the
// client sees why it was dropped.
func (h *WSHandler) reject(conn *websocket.Conn, client *hub.Client) {
	conn.SetWriteDeadline(time.Now().Add(h.wsCfg.WriteWait))
	for {
		select {
		case data := <-client.Send:
			conn.WriteMessage(websocket.TextMessage, data)
			continue
		default:
		}
		break
	}
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unauthorized"))
	conn.Close()
}

func (h *WSHandler) handleMessage(client *hub.Client, message []byte) {
	var base domain.BaseMessage
	if err := json.Unmarshal(message, &base); err != nil {
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "invalid message format"))
		return
	}

	ctx := context.Background()

	switch base.Type {
	case domain.MsgTypeJoinUser:
		var msg domain.JoinUserMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "invalid join_user message"))
			return
		}
		h.service.HandleJoinUser(ctx, client, msg.UserID)

	case domain.MsgTypeLeaveUser:
		var msg domain.JoinUserMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "invalid leave_user message"))
			return
		}
		h.service.HandleLeaveUser(ctx, client, msg.UserID)

	case domain.MsgTypeJoinChannel:
		var msg domain.JoinChannelMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "invalid join_channel message"))
			return
		}
		h.service.HandleJoinChannel(ctx, client, msg.ChannelID)

	case domain.MsgTypeLeaveChannel:
		var msg domain.JoinChannelMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "invalid leave_channel message"))
			return
		}
		h.service.HandleLeaveChannel(ctx, client, msg.ChannelID)

	case domain.MsgTypeJoinGlobal:
		h.service.HandleJoinGlobal(ctx, client)

	case domain.MsgTypeLeaveGlobal:
		h.service.HandleLeaveGlobal(ctx, client)

	case domain.MsgTypePing:
		client.SendMessage(&domain.BaseMessage{Type: domain.MsgTypePong})

	default:
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "unknown message type: "+base.Type))
	}
}

func bearerToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	header := r.Header.Get("Authorization")
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return after
	}
	return ""
}
