package app

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/MrWong99/dictato/internal/glossary"
	"github.com/MrWong99/dictato/internal/observe"
	"github.com/MrWong99/dictato/internal/rewrite"
	"github.com/MrWong99/dictato/internal/transcript"
	"github.com/MrWong99/dictato/pkg/types"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// headerSaved reports whether a glossary mutation reached storage. It is
// "false" when the change is only held in memory.
const headerSaved = "X-Glossary-Saved"

type addRuleRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type processRequest struct {
	Text       string             `json:"text"`
	IsFinal    bool               `json:"is_final"`
	Confidence float64            `json:"confidence"`
	Words      []types.WordDetail `json:"words"`
}

type processResponse struct {
	Text        string                  `json:"text"`
	Corrections []transcript.Correction `json:"corrections"`
}

type rewriteRequest struct {
	Text        string `json:"text"`
	Instruction string `json:"instruction"`
}

type rewriteResponse struct {
	Text string `json:"text"`
}

type vocabularyResponse struct {
	Terms []string `json:"terms"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (a *App) handleListGlossary(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.glossary.Terms())
}

// handleAddGlossary answers 201 when a rule was added and 200 with the
// unchanged list when the input was empty after trimming.
func (a *App) handleAddGlossary(w http.ResponseWriter, r *http.Request) {
	var req addRuleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if _, ok := glossary.NewRule(req.From, req.To); !ok {
		writeJSON(w, http.StatusOK, a.glossary.Terms())
		return
	}
	err := a.glossary.Add(r.Context(), req.From, req.To)
	markSaved(w, r, err)
	writeJSON(w, http.StatusCreated, a.glossary.Terms())
}

func (a *App) handleRemoveGlossary(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "index must be an integer"})
		return
	}
	err = a.glossary.Remove(r.Context(), index)
	markSaved(w, r, err)
	writeJSON(w, http.StatusOK, a.glossary.Terms())
}

func (a *App) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := a.pipeline.Load().Correct(r.Context(), types.Transcript{
		Text:       req.Text,
		IsFinal:    req.IsFinal,
		Confidence: req.Confidence,
		Words:      req.Words,
	})
	if err != nil {
		observe.Logger(r.Context()).Warn("correction failed", "err", err)
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, processResponse{Text: res.Corrected, Corrections: res.Corrections})
}

// handleRewrite answers 503 when no LLM is configured and 502 when the
// provider call fails.
func (a *App) handleRewrite(w http.ResponseWriter, r *http.Request) {
	var req rewriteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	out, err := a.rewriter.Rewrite(r.Context(), req.Text, req.Instruction)
	switch {
	case errors.Is(err, rewrite.ErrNotConfigured):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
	case err != nil:
		observe.Logger(r.Context()).Warn("rewrite failed", "err", err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
	default:
		writeJSON(w, http.StatusOK, rewriteResponse{Text: out})
	}
}

func (a *App) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.sessions.List())
}

func (a *App) handleVocabulary(w http.ResponseWriter, _ *http.Request) {
	terms := a.Vocabulary()
	if terms == nil {
		terms = []string{}
	}
	writeJSON(w, http.StatusOK, vocabularyResponse{Terms: terms})
}

// markSaved sets [headerSaved] to "false" and logs when a glossary mutation
// could not be persisted. The mutation itself stays applied.
func markSaved(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}
	observe.Logger(r.Context()).Warn("glossary change not persisted", "err", err)
	w.Header().Set(headerSaved, "false")
}

// decodeJSON reads a size-limited JSON body into v. On failure it writes a
// 400 response and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body: " + err.Error()})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("write response failed", "err", err)
	}
}
