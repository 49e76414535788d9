package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/agriai/agriai-server/internal/auth"
	"github.com/agriai/agriai-server/internal/config"
	"github.com/agriai/agriai-server/internal/core"
	"github.com/agriai/agriai-server/internal/proto"
	"github.com/agriai/agriai-server/internal/utils"
)

// WSHandler upgrades HTTP connections and bridges them to core.Client.
type WSHandler struct {
	dispatcher      *core.Dispatcher
	hub             *core.Hub
	authService     *auth.Service
	jwtRequired     bool
	bufferSize      int
	rateLimit       int
	maxMessageBytes int64
	log             *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler. Without a dispatcher every
// upgrade is answered with 503.
func NewWSHandler(dispatcher *core.Dispatcher, authService *auth.Service, cfg *config.Config, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{
		dispatcher:      dispatcher,
		hub:             dispatcher.Hub(),
		authService:     authService,
		jwtRequired:     cfg.JWTRequired,
		bufferSize:      cfg.ClientBufferSize,
		rateLimit:       cfg.RateLimitPerMinute,
		maxMessageBytes: cfg.MaxMessageBytes,
		log:             logger,
	}
}

// session is the per-connection state owned by the read loop.
type session struct {
	client  *core.Client
	limiter *rateLimiter
	userID  string
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	if h.hub == nil {
		h.log.Error().Msg("ws request without realtime dispatcher")
		stdhttp.Error(w, "realtime unavailable", stdhttp.StatusServiceUnavailable)
		return
	}
	ctx := r.Context()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")
	if h.maxMessageBytes > 0 {
		conn.SetReadLimit(h.maxMessageBytes)
	}

	client := core.NewClient(utils.NewID(), h.bufferSize)
	if err := h.hub.Register(client); err != nil {
		h.log.Error().Err(err).Str("client_id", client.ID).Msg("register client")
		return
	}
	defer h.hub.Unregister(client.ID)
	h.log.Info().Str("client_id", client.ID).Str("remote", r.RemoteAddr).Msg("client connected")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sess := &session{client: client, limiter: newRateLimiter(h.rateLimit)}

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, sess)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != -1 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Str("client_id", client.ID).Msg("ws connection closed with error")
		}
	}

	h.log.Info().Str("client_id", client.ID).Str("user_id", sess.userID).Msg("client disconnected")
	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, sess *session) error {
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			h.log.Debug().Err(err).Str("client_id", sess.client.ID).Msg("read ws inbound")
			return err
		}

		if !sess.limiter.allow() {
			if err := h.writeError(ctx, conn, core.ErrCodeRateLimited, "too many messages"); err != nil {
				return err
			}
			continue
		}

		if inbound.Type == proto.InboundTypeHello {
			if err := h.handleHello(ctx, conn, sess, inbound.Data); err != nil {
				return err
			}
			continue
		}

		if h.jwtRequired && sess.userID == "" {
			if err := h.writeError(ctx, conn, core.ErrCodeUnauthorized, "hello with a valid token required"); err != nil {
				return err
			}
			continue
		}

		cmd, protoErr := inboundToCommand(inbound)
		if protoErr == nil {
			if coreErr := h.dispatcher.Apply(sess.client.ID, *cmd); coreErr != nil {
				protoErr = &proto.Error{Code: coreErr.Code, Msg: coreErr.Message}
			}
		}
		if protoErr != nil {
			if err := h.writeError(ctx, conn, protoErr.Code, protoErr.Msg); err != nil {
				return err
			}
		}
	}
}

// handleHello authenticates the connection and places it in its personal,
// order and (for admins) admin rooms.
func (h *WSHandler) handleHello(ctx context.Context, conn *websocket.Conn, sess *session, data json.RawMessage) error {
	var hello proto.HelloData
	if len(data) > 0 {
		if err := json.Unmarshal(data, &hello); err != nil {
			return h.writeError(ctx, conn, core.ErrCodeBadRequest, "invalid hello payload")
		}
	}
	if hello.Protocol != 0 && hello.Protocol != proto.ProtocolVersion {
		return h.writeError(ctx, conn, core.ErrCodeUnsupportedVersion, "unsupported protocol version")
	}
	if sess.userID != "" {
		return h.writeError(ctx, conn, core.ErrCodeBadRequest, "already identified")
	}

	if hello.Token == "" {
		if h.jwtRequired {
			return h.writeError(ctx, conn, core.ErrCodeUnauthorized, "token required")
		}
		return h.writeReady(ctx, conn, sess)
	}

	claims, err := h.authService.ValidateToken(hello.Token)
	if err != nil {
		h.log.Debug().Err(err).Str("client_id", sess.client.ID).Msg("hello with invalid token")
		return h.writeError(ctx, conn, core.ErrCodeUnauthorized, "invalid token")
	}

	sess.userID = claims.UserID()
	h.hub.Identify(sess.client.ID, sess.userID, claims.Role, claims.IsAdmin())

	h.log.Info().
		Str("client_id", sess.client.ID).
		Str("user_id", sess.userID).
		Str("role", claims.Role).
		Msg("client identified")
	return h.writeReady(ctx, conn, sess)
}

func (h *WSHandler) writeReady(ctx context.Context, conn *websocket.Conn, sess *session) error {
	rooms := h.hub.Rooms(sess.client.ID)
	if rooms == nil {
		rooms = []string{}
	}
	return wsjson.Write(ctx, conn, proto.Outbound{
		Type: proto.OutboundTypeReady,
		Data: proto.ReadyData{
			ClientID: sess.client.ID,
			UserID:   sess.userID,
			Rooms:    rooms,
			Protocol: proto.ProtocolVersion,
		},
	})
}

func (h *WSHandler) writeError(ctx context.Context, conn *websocket.Conn, code, msg string) error {
	return wsjson.Write(ctx, conn, outboundError(code, msg))
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		select {
		case event, ok := <-client.Events:
			if !ok {
				return nil
			}
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				h.log.Error().Err(err).Str("client_id", client.ID).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
