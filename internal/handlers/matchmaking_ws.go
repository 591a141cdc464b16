// internal/handlers/matchmaking_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/arena/internal/engine"
	"github.com/jason-s-yu/arena/internal/middleware"
	"github.com/jason-s-yu/arena/internal/models"
	"github.com/sirupsen/logrus"
)

// Subprotocol is the websocket subprotocol clients must request.
const Subprotocol = "matchmaking"

// EventError is pushed for frames that never reach the engine.
const EventError = "error"

// Engine is the command surface the handlers drive.
type Engine interface {
	Submit(ctx context.Context, cmd engine.Command) error
	Stats(ctx context.Context) (engine.Snapshot, error)
}

// inbound is a client frame. Only the fields relevant to Type are read.
type inbound struct {
	Type      string    `json:"type"`
	Token     string    `json:"token"`
	Mode      string    `json:"mode"`
	PartyID   uuid.UUID `json:"partyId"`
	MatchID   uuid.UUID `json:"matchId"`
	ScoreRed  float64   `json:"scoreRed"`
	ScoreBlue float64   `json:"scoreBlue"`
}

// commandFor maps a client frame onto an engine command.
func commandFor(sessionID uuid.UUID, in inbound) (engine.Command, bool) {
	from := engine.From{SessionID: sessionID}
	switch in.Type {
	case models.ActionAuthenticate:
		return engine.Authenticate{From: from, Token: in.Token}, true
	case models.ActionJoinQueue:
		return engine.JoinQueue{From: from, Mode: in.Mode}, true
	case models.ActionLeaveQueue:
		return engine.LeaveQueue{From: from, Mode: in.Mode}, true
	case models.ActionCreateParty:
		return engine.CreateParty{From: from}, true
	case models.ActionJoinParty:
		return engine.JoinParty{From: from, PartyID: in.PartyID}, true
	case models.ActionLeaveParty:
		return engine.LeaveParty{From: from}, true
	case models.ActionPartyJoinQueue:
		return engine.PartyJoinQueue{From: from, Mode: in.Mode}, true
	case models.ActionPartyLeaveQueue:
		return engine.PartyLeaveQueue{From: from, Mode: in.Mode}, true
	case models.ActionPlayerReady:
		return engine.PlayerReady{From: from, MatchID: in.MatchID}, true
	case models.ActionDeclineMatch:
		return engine.DeclineMatch{From: from, MatchID: in.MatchID}, true
	case models.ActionReportResult:
		return engine.ReportResult{From: from, MatchID: in.MatchID, ScoreRed: in.ScoreRed, ScoreBlue: in.ScoreBlue}, true
	}
	return nil, false
}

// MatchmakingWSHandler upgrades to a websocket session. A token in the auth
// cookie, Authorization header or query string authenticates immediately;
// otherwise the client sends an authenticate frame.
func MatchmakingWSHandler(logger *logrus.Logger, hub *Hub, eng Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{Subprotocol},
			OriginPatterns: []string{"*"}, // Adjust in production
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != Subprotocol {
			c.Close(BadSubprotocolError, "client must speak the matchmaking subprotocol")
			return
		}

		sessionID := uuid.New()
		client := hub.Register(sessionID)
		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		if err := eng.Submit(ctx, engine.Connect{From: engine.From{SessionID: sessionID}}); err != nil {
			hub.Unregister(sessionID)
			c.Close(EngineStoppedError, "matchmaking unavailable")
			return
		}
		middleware.LogWebSocketConnect(logger, sessionID, r)

		if tok := requestToken(r); tok != "" {
			// failures are pushed to the client as auth-error
			_ = eng.Submit(ctx, engine.Authenticate{From: engine.From{SessionID: sessionID}, Token: tok})
		}

		go writePump(ctx, c, client, logger)
		readErr := readPump(ctx, c, sessionID, hub, eng, logger)

		// the request context may already be gone; the cascade must still run
		dctx, dcancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := eng.Submit(dctx, engine.Disconnect{From: engine.From{SessionID: sessionID}}); err != nil {
			logger.WithError(err).WithField("session_id", sessionID).Warn("disconnect not processed")
		}
		dcancel()
		hub.Unregister(sessionID)
		middleware.LogWebSocketDisconnect(logger, sessionID, r, readErr)
	}
}

// readPump decodes client frames and submits them to the engine until the
// connection closes. Engine errors have already been pushed to the client.
func readPump(ctx context.Context, c *websocket.Conn, sessionID uuid.UUID, hub *Hub, eng Engine, logger *logrus.Logger) error {
	log := logger.WithField("session_id", sessionID)
	for {
		typ, msg, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				return nil
			}
			if errors.Is(err, context.Canceled) || strings.Contains(err.Error(), "context canceled") {
				return nil
			}
			log.Warnf("read error: %v (CloseStatus: %d)", err, status)
			return err
		}

		if typ != websocket.MessageText {
			c.Close(MalformedFrameError, "text frames only")
			return nil
		}

		var in inbound
		if err := json.Unmarshal(msg, &in); err != nil {
			hub.Notify(sessionID, EventError, models.ErrorPayload{Code: "MalformedMessage", Kind: "validation", Message: "invalid JSON format"})
			continue
		}
		cmd, ok := commandFor(sessionID, in)
		if !ok {
			hub.Notify(sessionID, EventError, models.ErrorPayload{Code: "UnknownAction", Kind: "validation", Message: "unknown message type " + in.Type})
			continue
		}

		if err := eng.Submit(ctx, cmd); errors.Is(err, engine.ErrStopped) {
			c.Close(EngineStoppedError, "matchmaking shutting down")
			return err
		}
	}
}

// writePump drains the client's queue to the socket and keeps it alive with pings.
func writePump(ctx context.Context, c *websocket.Conn, client *Client, logger *logrus.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-client.OutChan:
			if !ok {
				return
			}
			data, err := json.Marshal(env)
			if err != nil {
				logger.Warnf("failed to marshal %s for session %v: %v", env.Type, client.SessionID, err)
				continue
			}

			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				logger.Warnf("failed to write to websocket for session %v: %v", client.SessionID, err)
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				logger.Warnf("failed to ping session %v: %v. Assuming disconnect.", client.SessionID, err)
				return
			}
		}
	}
}
