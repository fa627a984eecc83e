package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/tabletalk/tabletalk/internal/chat"
	"github.com/tabletalk/tabletalk/internal/config"
	"github.com/tabletalk/tabletalk/internal/observability"
	"github.com/tabletalk/tabletalk/internal/render"
	"github.com/tabletalk/tabletalk/internal/session"
	"github.com/tabletalk/tabletalk/internal/tabular"
)

// uploadFormSlack covers multipart framing overhead on top of the
// configured file size cap.
const uploadFormSlack = 1 << 20

func handleCreateSession(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Sessions == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SESSIONS_DISABLED", "session store is not configured", false, nil)
		return
	}
	info, err := deps.Sessions.Create(r.Context(), tenantFromRequest(r))
	if err != nil {
		if errors.Is(err, session.ErrTooManySessions) {
			writeError(r.Context(), w, http.StatusTooManyRequests, "SESSION_LIMIT", "session limit reached, retry once an existing session expires", true, nil)
			return
		}
		writeError(r.Context(), w, http.StatusInternalServerError, "SESSION_CREATE_FAILED", err.Error(), true, nil)
		return
	}
	observability.SetActiveSessions(deps.Sessions.Count(r.Context()))
	writeJSON(w, http.StatusCreated, map[string]any{"session": info})
}

func handleGetSession(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	info, ok := lookupSession(deps, w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": info})
}

func handleDeleteSession(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	info, ok := lookupSession(deps, w, r)
	if !ok {
		return
	}
	if err := deps.Sessions.Delete(r.Context(), info.ID); err != nil && !errors.Is(err, session.ErrNotFound) {
		writeError(r.Context(), w, http.StatusInternalServerError, "SESSION_DELETE_FAILED", err.Error(), true, nil)
		return
	}
	observability.SetActiveSessions(deps.Sessions.Count(r.Context()))
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted", "session_id": info.ID})
}

func handleUpload(cfg config.Config, deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Chat == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "CHAT_DISABLED", "chat service is not configured", false, nil)
		return
	}
	info, ok := lookupSession(deps, w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, cfg.Upload.MaxBytes+uploadFormSlack)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(r.Context(), w, http.StatusRequestEntityTooLarge, chat.CodeUploadTooLarge,
				fmt.Sprintf("upload exceeds the %d byte limit", cfg.Upload.MaxBytes), false, nil)
			return
		}
		writeError(r.Context(), w, http.StatusBadRequest, chat.CodeUploadInvalid, "multipart form with a file field is required", false, nil)
		return
	}
	defer file.Close()

	updated, err := deps.Chat.Upload(r.Context(), info.ID, header.Filename, file)
	if err != nil {
		writeUploadError(w, r, err)
		return
	}
	table, _, err := deps.Sessions.TableState(r.Context(), info.ID)
	if err != nil {
		writeSessionNotFound(w, r, info.ID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session": updated,
		"table":   tablePayload(table, deps.PreviewRows),
	})
}

func handleGetTable(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	info, ok := lookupSession(deps, w, r)
	if !ok {
		return
	}
	table, _, err := deps.Sessions.TableState(r.Context(), info.ID)
	if err != nil {
		if errors.Is(err, session.ErrNoTable) {
			writeError(r.Context(), w, http.StatusNotFound, "NO_TABLE", "no spreadsheet has been uploaded to this session", false, nil)
			return
		}
		writeSessionNotFound(w, r, info.ID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": info.ID,
		"table":      tablePayload(table, deps.PreviewRows),
	})
}

func handleTranscript(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	info, ok := lookupSession(deps, w, r)
	if !ok {
		return
	}
	turns, err := deps.Sessions.Transcript(r.Context(), info.ID)
	if err != nil {
		writeSessionNotFound(w, r, info.ID)
		return
	}
	if turns == nil {
		turns = []session.Turn{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"session_id": info.ID, "turns": turns})
}

func handleTurnCSV(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	info, ok := lookupSession(deps, w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(r.PathValue("turn"))
	if err != nil || index < 0 {
		writeError(r.Context(), w, http.StatusBadRequest, "TURN_INVALID", "turn index must be a non-negative integer", false, nil)
		return
	}
	turn, err := deps.Sessions.TurnAt(r.Context(), info.ID, index)
	if err != nil {
		if errors.Is(err, session.ErrTurnNotFound) {
			writeError(r.Context(), w, http.StatusNotFound, "TURN_NOT_FOUND", fmt.Sprintf("session has no turn %d", index), false, nil)
			return
		}
		writeSessionNotFound(w, r, info.ID)
		return
	}
	if turn.Result.Kind != render.KindTable || turn.Result.Table == nil {
		writeError(r.Context(), w, http.StatusConflict, "RESULT_NOT_TABULAR",
			fmt.Sprintf("turn %d did not produce a table result", index), false, nil)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("result-%d.csv", index)))
	if err := render.WriteCSV(w, turn.Result.Table); err != nil && deps.Logger != nil {
		deps.Logger.Error("csv download aborted", "session_id", info.ID, "turn", index, "error", err)
	}
}

func lookupSession(deps Dependencies, w http.ResponseWriter, r *http.Request) (session.Info, bool) {
	if deps.Sessions == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SESSIONS_DISABLED", "session store is not configured", false, nil)
		return session.Info{}, false
	}
	id := r.PathValue("session")
	info, err := deps.Sessions.Get(r.Context(), id)
	if err != nil || !visibleTo(r, info.Tenant) {
		writeSessionNotFound(w, r, id)
		return session.Info{}, false
	}
	return info, true
}

func writeSessionNotFound(w http.ResponseWriter, r *http.Request, id string) {
	writeError(r.Context(), w, http.StatusNotFound, "SESSION_NOT_FOUND", fmt.Sprintf("session %q not found", id), false, nil)
}

func writeUploadError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, session.ErrNotFound) {
		writeError(r.Context(), w, http.StatusNotFound, "SESSION_NOT_FOUND", "session expired during upload", false, nil)
		return
	}
	var terr *chat.TurnError
	if errors.As(err, &terr) {
		status := http.StatusBadRequest
		retryable := false
		switch terr.Code {
		case chat.CodeUploadTooLarge:
			status = http.StatusRequestEntityTooLarge
		case chat.CodeUploadFailed:
			status = http.StatusBadGateway
			retryable = true
		}
		writeError(r.Context(), w, status, terr.Code, terr.Message, retryable, nil)
		return
	}
	writeError(r.Context(), w, http.StatusInternalServerError, chat.CodeUploadFailed, err.Error(), true, nil)
}

type tableColumn struct {
	Name     string   `json:"name"`
	Kind     string   `json:"kind"`
	NonNull  int      `json:"non_null"`
	Distinct int      `json:"distinct"`
	Min      *float64 `json:"min,omitempty"`
	Max      *float64 `json:"max,omitempty"`
	Mean     *float64 `json:"mean,omitempty"`
	Samples  []string `json:"samples,omitempty"`
}

type tableResponse struct {
	SourceName string        `json:"source_name"`
	RowCount   int           `json:"row_count"`
	LoadedAt   time.Time     `json:"loaded_at"`
	Columns    []tableColumn `json:"columns"`
	Preview    [][]string    `json:"preview"`
}

func tablePayload(t *tabular.Table, previewRows int) tableResponse {
	if previewRows <= 0 {
		previewRows = 10
	}
	resp := tableResponse{
		SourceName: t.SourceName,
		RowCount:   t.RowCount,
		LoadedAt:   t.LoadedAt,
		Columns:    make([]tableColumn, 0, len(t.Columns)),
		Preview:    [][]string{},
	}
	for _, col := range t.Columns {
		entry := tableColumn{
			Name:     col.Name,
			Kind:     string(col.Kind),
			NonNull:  col.Profile.NonNullCount,
			Distinct: col.Profile.DistinctCount,
			Samples:  col.SampleValues(3),
		}
		if col.Kind == tabular.KindNumber && col.Profile.NonNullCount > 0 {
			minVal, maxVal, meanVal := col.Profile.Min, col.Profile.Max, col.Profile.Mean
			entry.Min, entry.Max, entry.Mean = &minVal, &maxVal, &meanVal
		}
		resp.Columns = append(resp.Columns, entry)
	}
	for _, row := range t.Preview(previewRows) {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = tabular.FormatCell(cell)
		}
		resp.Preview = append(resp.Preview, cells)
	}
	return resp
}
