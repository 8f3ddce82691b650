package httpadapter

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/PabloGalante/singlechat/internal/domain"
	"github.com/PabloGalante/singlechat/internal/observability"
)

const (
	frameMessageUpdate = "message_update"
	frameError         = "error"

	// maxFrameBytes caps one inbound frame. A larger frame closes the
	// connection with CloseMessageTooBig.
	maxFrameBytes = 1 << 20
)

type updateFrame struct {
	Type     string            `json:"type"`
	Messages []messageResponse `json:"messages"`
}

type errorFrame struct {
	Type  string `json:"type"`
	Error string `json:"error"`
	Stage string `json:"stage,omitempty"`
}

// handleWebSocket serves one session. Frames are handled in order on this
// goroutine, so replies never interleave.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		observability.LoggerFromContext(r.Context()).Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxFrameBytes)

	ctx := observability.WithConnID(r.Context(), observability.NewID())
	log := observability.LoggerFromContext(ctx)
	log.Info("websocket connected", "remote_addr", r.RemoteAddr)

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("websocket read failed", "error", err)
			} else {
				log.Info("websocket disconnected")
			}
			return
		}
		if kind != websocket.TextMessage {
			log.Debug("ignoring non-text frame", "frame_type", kind)
			continue
		}

		if err := s.dispatch(ctx, conn, DecodeCommand(data)); err != nil {
			log.Warn("websocket write failed", "error", err)
			return
		}
	}
}

// dispatch returns an error only when the connection can no longer be written.
func (s *Server) dispatch(ctx context.Context, conn *websocket.Conn, cmd Command) error {
	log := observability.LoggerFromContext(ctx)

	switch c := cmd.(type) {
	case SendMessage:
		turn, err := s.conv.SendMessage(ctx, c.Content)
		if err != nil {
			log.Error("failed to handle message", "stage", domain.StageOf(err), "error", err)
			return s.writeError(conn, "failed to process message", domain.StageOf(err))
		}
		return conn.WriteJSON(updateFrame{
			Type:     frameMessageUpdate,
			Messages: toMessagesResponse(turn.Messages()),
		})

	case GetMessages:
		msgs, err := s.conv.History(ctx)
		if err != nil {
			log.Error("failed to get messages", "error", err)
			return s.writeError(conn, "failed to load messages", domain.StageReconstructHistory)
		}
		return conn.WriteJSON(updateFrame{
			Type:     frameMessageUpdate,
			Messages: toMessagesResponse(msgs),
		})

	case Unknown:
		if c.Err != nil {
			log.Warn("ignoring undecodable frame", "error", c.Err)
		} else {
			log.Warn("ignoring unknown command", "type", c.Type)
		}
		return nil

	default:
		return errors.New("unhandled command type")
	}
}

func (s *Server) writeError(conn *websocket.Conn, msg string, stage domain.TurnStage) error {
	if s.opts.SilentFailures {
		return nil
	}
	return conn.WriteJSON(errorFrame{
		Type:  frameError,
		Error: msg,
		Stage: string(stage),
	})
}
