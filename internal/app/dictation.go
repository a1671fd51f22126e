package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"

	"github.com/MrWong99/dictato/internal/glossary"
	"github.com/MrWong99/dictato/internal/transcript"
	"github.com/MrWong99/dictato/pkg/types"
)

// Message types exchanged over /ws/dictation.
const (
	msgSegment  = "segment"
	msgGlossary = "glossary"
	msgError    = "error"
)

// readLimit caps a single client frame.
const readLimit = 64 << 10

// clientMessage is a frame sent by the browser.
type clientMessage struct {
	Type       string             `json:"type"`
	Text       string             `json:"text"`
	IsFinal    bool               `json:"is_final"`
	Confidence float64            `json:"confidence,omitempty"`
	Words      []types.WordDetail `json:"words,omitempty"`
}

// segmentMessage answers one segment with its corrected text.
type segmentMessage struct {
	Type        string                  `json:"type"`
	Text        string                  `json:"text"`
	IsFinal     bool                    `json:"is_final"`
	Corrections []transcript.Correction `json:"corrections,omitempty"`
}

// glossaryMessage carries the full rule list after every glossary change.
type glossaryMessage struct {
	Type  string          `json:"type"`
	Rules []glossary.Rule `json:"rules"`
}

func newGlossaryMessage(rules []glossary.Rule) glossaryMessage {
	if rules == nil {
		rules = []glossary.Rule{}
	}
	return glossaryMessage{Type: msgGlossary, Rules: rules}
}

type errorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// handleDictation upgrades the request to a WebSocket and corrects every
// segment the client sends. The current glossary is pushed right after the
// upgrade and again after every change.
func (a *App) handleDictation(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: a.cfg.Server.AllowedOrigins,
	})
	if err != nil {
		slog.Warn("websocket accept failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	conn.SetReadLimit(readLimit)

	ctx := r.Context()
	sess := a.sessions.Open(conn, r.RemoteAddr)
	defer a.sessions.Close(sess, websocket.StatusNormalClosure, "")

	if err := sess.Send(ctx, newGlossaryMessage(a.glossary.Terms())); err != nil {
		slog.Debug("initial glossary push failed", "session_id", sess.ID(), "err", err)
		return
	}

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			logReadEnd(sess, err)
			return
		}
		if typ != websocket.MessageText {
			a.sendError(ctx, sess, "binary frames are not supported")
			continue
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			a.sendError(ctx, sess, "invalid JSON: "+err.Error())
			continue
		}

		switch msg.Type {
		case msgSegment:
			if err := a.handleSegment(ctx, sess, msg); err != nil {
				slog.Debug("segment reply failed", "session_id", sess.ID(), "err", err)
				return
			}
		default:
			a.sendError(ctx, sess, fmt.Sprintf("unknown message type %q", msg.Type))
		}
	}
}

// handleSegment corrects one segment and writes the reply. Only write
// errors are returned; correction failures are reported to the client.
func (a *App) handleSegment(ctx context.Context, sess *Session, msg clientMessage) error {
	a.sessions.RecordSegment(ctx, sess, msg.IsFinal)

	res, err := a.pipeline.Load().Correct(ctx, types.Transcript{
		Text:       msg.Text,
		IsFinal:    msg.IsFinal,
		Confidence: msg.Confidence,
		Words:      msg.Words,
	})
	if err != nil {
		return sess.Send(ctx, errorMessage{Type: msgError, Error: err.Error()})
	}
	return sess.Send(ctx, segmentMessage{
		Type:        msgSegment,
		Text:        res.Corrected,
		IsFinal:     msg.IsFinal,
		Corrections: res.Corrections,
	})
}

func (a *App) sendError(ctx context.Context, sess *Session, text string) {
	if err := sess.Send(ctx, errorMessage{Type: msgError, Error: text}); err != nil {
		slog.Debug("error reply failed", "session_id", sess.ID(), "err", err)
	}
}

// logReadEnd logs why a session's read loop stopped. Client-initiated
// closes are routine.
func logReadEnd(sess *Session, err error) {
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		slog.Debug("dictation client closed", "session_id", sess.ID())
		return
	}
	if errors.Is(err, context.Canceled) {
		slog.Debug("dictation session cancelled", "session_id", sess.ID())
		return
	}
	slog.Warn("dictation read failed", "session_id", sess.ID(), "err", err)
}
