package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tabletalk/tabletalk/internal/chat"
	"github.com/tabletalk/tabletalk/internal/prompt"
	"github.com/tabletalk/tabletalk/internal/render"
	"github.com/tabletalk/tabletalk/internal/session"
)

type askRequest struct {
	Question string `json:"question"`
}

func handleAsk(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Chat == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "CHAT_DISABLED", "chat service is not configured", false, nil)
		return
	}
	info, ok := lookupSession(deps, w, r)
	if !ok {
		return
	}
	var req askRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "request body must be valid JSON", false, map[string]any{
			"details": err.Error(),
		})
		return
	}
	turn, err := deps.Chat.Ask(r.Context(), info.ID, req.Question)
	if err != nil {
		writeAskError(w, r, err)
		return
	}
	writeJSON(w, askStatus(turn), map[string]any{"session_id": info.ID, "turn": turn})
}

// askStatus maps a recorded turn to an HTTP status. Model outages are
// the upstream's fault, so they surface as gateway errors even though
// the turn itself is in the transcript. Execution and render failures
// stay 200: the turn is the answer.
func askStatus(turn session.Turn) int {
	if turn.Result.Kind != render.KindError || turn.Result.Error == nil {
		return http.StatusOK
	}
	switch turn.Result.Error.Code {
	case chat.CodeModelTimeout:
		return http.StatusGatewayTimeout
	case chat.CodeModelNotConfigured, chat.CodeModelEmpty, chat.CodeModelMalformed, chat.CodeModelFailed:
		return http.StatusBadGateway
	}
	return http.StatusOK
}

func writeAskError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		writeError(r.Context(), w, http.StatusNotFound, "SESSION_NOT_FOUND", "session expired", false, nil)
	case errors.Is(err, session.ErrNoTable), errors.Is(err, prompt.ErrNoTable):
		writeError(r.Context(), w, http.StatusConflict, "NO_TABLE", "upload a spreadsheet before asking questions", false, nil)
	case errors.Is(err, prompt.ErrEmptyQuestion):
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_EMPTY", "question must not be empty", false, nil)
	case errors.Is(err, prompt.ErrQuestionTooLong):
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_TOO_LONG", err.Error(), false, nil)
	default:
		writeError(r.Context(), w, http.StatusInternalServerError, "ASK_FAILED", err.Error(), true, nil)
	}
}

func handleExamples(deps Dependencies, w http.ResponseWriter, _ *http.Request) {
	examples := deps.Examples
	if examples == nil {
		examples = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"examples": examples})
}
