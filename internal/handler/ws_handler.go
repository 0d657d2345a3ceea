package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/weiawesome/chat-backend/internal/config"
	"github.com/weiawesome/chat-backend/internal/domain"
	"github.com/weiawesome/chat-backend/internal/hub"
	"github.com/weiawesome/chat-backend/internal/service"
	"github.com/weiawesome/chat-backend/pkg/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSHandler upgrades connections and dispatches websocket events to the
// realtime service.
type WSHandler struct {
	hub      *hub.Hub
	realtime service.RealtimeService
	wsCfg    config.WebSocketConfig
}

// NewWSHandler creates a new websocket handler.
func NewWSHandler(h *hub.Hub, realtime service.RealtimeService, wsCfg config.WebSocketConfig) *WSHandler {
	return &WSHandler{
		hub:      h,
		realtime: realtime,
		wsCfg:    wsCfg,
	}
}

// RegisterRoutes registers the websocket endpoint.
func (h *WSHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/ws", h.HandleWebSocket)
}

// HandleWebSocket upgrades the request and starts the client pumps.
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Ctx(c.Request.Context()).Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := hub.NewClient(uuid.New().String(), h.hub, conn, h.wsCfg)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump(h.handleEvent)
}

func (h *WSHandler) handleEvent(client *hub.Client, message []byte) {
	var base domain.BaseEvent
	if err := json.Unmarshal(message, &base); err != nil {
		client.SendEvent(domain.NewErrorEvent("Invalid event format"))
		return
	}

	ctx := log.WithLogger(context.Background(), log.L().With().Str(log.FieldClientID, client.ID).Logger())

	switch base.Type {
	case domain.EventAuthenticate:
		var evt domain.AuthenticateEvent
		if err := json.Unmarshal(message, &evt); err != nil {
			client.SendEvent(domain.NewErrorEvent("Invalid authenticate event"))
			return
		}
		if err := h.realtime.HandleAuthenticate(ctx, client, evt.UserID); err != nil {
			log.Ctx(ctx).Warn().Err(err).Msg("authenticate failed")
		}

	case domain.EventMessage:
		var evt domain.PublishEvent
		if err := json.Unmarshal(message, &evt); err != nil {
			client.SendEvent(domain.NewErrorEvent("Invalid message event"))
			return
		}
		if evt.ConversationID == 0 || evt.SenderID == 0 {
			client.SendEvent(&domain.MessageAckEvent{
				Type:  domain.EventMessageAck,
				Error: "Missing fields",
			})
			return
		}
		if err := h.realtime.HandlePublish(ctx, client, evt.ConversationID, evt.SenderID, evt.Content); err != nil {
			log.Ctx(ctx).Warn().Err(err).Msg("publish failed")
		}

	case domain.EventJoin:
		var evt domain.JoinEvent
		if err := json.Unmarshal(message, &evt); err != nil {
			client.SendEvent(domain.NewErrorEvent("Invalid join event"))
			return
		}
		if err := h.realtime.HandleJoin(ctx, client, evt.ConversationID, evt.UserID); err != nil {
			log.Ctx(ctx).Warn().Err(err).Msg("join failed")
		}

	case domain.EventLeave:
		var evt domain.LeaveEvent
		if err := json.Unmarshal(message, &evt); err != nil {
			return
		}
		h.realtime.HandleLeave(ctx, client, evt.ConversationID)

	default:
		client.SendEvent(domain.NewErrorEvent("Unknown event type"))
	}
}
