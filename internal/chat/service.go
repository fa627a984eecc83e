// Package chat runs the turn pipeline: compose a prompt from the
// session's table, ask the model, gate and execute the snippet, render
// the outcome and append it to the transcript. Upload handling lives
// here too so the HTTP layer stays thin.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/tabletalk/tabletalk/internal/exec"
	"github.com/tabletalk/tabletalk/internal/model"
	"github.com/tabletalk/tabletalk/internal/observability"
	"github.com/tabletalk/tabletalk/internal/prompt"
	"github.com/tabletalk/tabletalk/internal/render"
	"github.com/tabletalk/tabletalk/internal/session"
	"github.com/tabletalk/tabletalk/internal/snippet"
	"github.com/tabletalk/tabletalk/internal/tabular"
)

type Dependencies struct {
	Sessions *session.Store
	Composer *prompt.Composer
	Client   model.Client
	Engine   exec.Engine
	Logger   *slog.Logger
}

type Service struct {
	sessions *session.Store
	composer *prompt.Composer
	client   model.Client
	engine   exec.Engine
	limits   tabular.Limits
	logger   *slog.Logger
}

func NewService(limits tabular.Limits, deps Dependencies) (*Service, error) {
	if deps.Sessions == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if deps.Composer == nil {
		return nil, fmt.Errorf("prompt composer is required")
	}
	if deps.Client == nil {
		return nil, fmt.Errorf("model client is required")
	}
	if deps.Engine == nil {
		return nil, fmt.Errorf("execution engine is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		sessions: deps.Sessions,
		composer: deps.Composer,
		client:   deps.Client,
		engine:   deps.Engine,
		limits:   limits,
		logger:   logger,
	}, nil
}

// Upload parses a spreadsheet and commits it as the session's table.
// On any failure the previous table stays in place.
func (s *Service) Upload(ctx context.Context, sessionID, filename string, r io.Reader) (session.Info, error) {
	start := time.Now()

	table, err := tabular.Load(filename, r, s.limits)
	if err != nil {
		observability.ObserveUpload("rejected", 0, time.Since(start))
		return session.Info{}, uploadError(err)
	}

	snapshot, err := tabular.EncodeTableToParquet(table)
	if err != nil {
		observability.ObserveUpload("failed", 0, time.Since(start))
		return session.Info{}, turnError(ErrorUpload, CodeUploadFailed, "could not snapshot the table", err)
	}

	info, err := s.sessions.ReplaceTable(ctx, sessionID, table, snapshot)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			observability.ObserveUpload("rejected", 0, time.Since(start))
			return session.Info{}, err
		}
		observability.ObserveUpload("failed", 0, time.Since(start))
		return session.Info{}, turnError(ErrorUpload, CodeUploadFailed, "could not store the table snapshot", err)
	}

	observability.ObserveUpload("ok", table.RowCount, time.Since(start))
	s.logger.Info("table uploaded",
		"session", sessionID,
		"source", table.SourceName,
		"rows", table.RowCount,
		"columns", len(table.Columns),
	)
	return info, nil
}

// Ask runs one full turn. Model, execution and render failures are
// recorded as error turns and still return successfully; only session
// level problems (unknown session, no table, bad question) surface as
// errors without a transcript entry.
func (s *Service) Ask(ctx context.Context, sessionID, question string) (session.Turn, error) {
	table, snapshotKey, err := s.sessions.TableState(ctx, sessionID)
	if err != nil {
		return session.Turn{}, err
	}

	composed, err := s.composer.Compose(table, question)
	if err != nil {
		return session.Turn{}, err
	}

	turn := session.Turn{Question: question}
	start := time.Now()

	answer, err := s.client.Complete(ctx, composed)
	if err != nil {
		observability.ObserveModelCall(modelOutcome(err), time.Since(start))
		return s.record(ctx, sessionID, turn, start, modelError(err))
	}
	observability.ObserveModelCall("ok", time.Since(start))
	turn.Model = answer.Model

	if answer.Kind == model.KindText {
		turn.Result = render.FromText(answer.Text)
		return s.record(ctx, sessionID, turn, start, nil)
	}

	turn.Snippet = answer.SQL
	validated, err := snippet.Validate(answer.SQL)
	if err != nil {
		observability.ObserveExecution("rejected", 0)
		return s.record(ctx, sessionID, turn, start, turnError(
			ErrorExecution, CodeExecutionRejected, err.Error(), err,
		))
	}

	execStart := time.Now()
	result, err := s.engine.Execute(ctx, exec.Request{
		SQL:      validated,
		Snapshot: snapshotKey,
	})
	if err != nil {
		observability.ObserveExecution(executionOutcome(err), time.Since(execStart))
		return s.record(ctx, sessionID, turn, start, executionError(err))
	}
	observability.ObserveExecution("ok", time.Since(execStart))

	rendered, err := render.FromExec(result, answer.Chart)
	if err != nil {
		return s.record(ctx, sessionID, turn, start, turnError(
			ErrorRender, CodeRenderFailed, err.Error(), err,
		))
	}

	turn.Result = rendered
	return s.record(ctx, sessionID, turn, start, nil)
}

// record appends the turn, substituting an error result when the turn
// failed. The transcript gets an entry either way.
func (s *Service) record(ctx context.Context, sessionID string, turn session.Turn, start time.Time, terr *TurnError) (session.Turn, error) {
	if terr != nil {
		turn.Result = render.FromError(terr.Code, terr.Message)
		s.logger.Warn("turn failed",
			"session", sessionID,
			"stage", string(terr.Kind),
			"code", terr.Code,
			"error", terr.Err,
		)
	}
	turn.ElapsedMS = time.Since(start).Milliseconds()

	recorded, err := s.sessions.AppendTurn(ctx, sessionID, turn)
	if err != nil {
		return session.Turn{}, err
	}
	observability.IncrementTurn(string(recorded.Result.Kind))
	s.logger.Debug("turn recorded",
		"session", sessionID,
		"turn", recorded.Index,
		"kind", string(recorded.Result.Kind),
		"elapsed_ms", recorded.ElapsedMS,
	)
	return recorded, nil
}

func uploadError(err error) *TurnError {
	switch {
	case errors.Is(err, tabular.ErrUnsupportedFormat):
		return turnError(ErrorUpload, CodeUploadUnsupported, "only .csv and .xlsx files are supported", err)
	case errors.Is(err, tabular.ErrEmptyFile):
		return turnError(ErrorUpload, CodeUploadEmpty, "the file has no data rows", err)
	case errors.Is(err, tabular.ErrTooManyRows),
		errors.Is(err, tabular.ErrTooManyColumns),
		errors.Is(err, tabular.ErrFileTooLarge):
		return turnError(ErrorUpload, CodeUploadTooLarge, err.Error(), err)
	default:
		return turnError(ErrorUpload, CodeUploadInvalid, "the file could not be parsed", err)
	}
}

func modelError(err error) *TurnError {
	switch {
	case errors.Is(err, model.ErrNotConfigured):
		return turnError(ErrorModel, CodeModelNotConfigured, "no model backend is configured", err)
	case errors.Is(err, model.ErrEmptyAnswer):
		return turnError(ErrorModel, CodeModelEmpty, "the model returned an empty answer", err)
	case errors.Is(err, model.ErrMalformedAnswer):
		return turnError(ErrorModel, CodeModelMalformed, "the model answer could not be parsed", err)
	case isTimeout(err):
		return turnError(ErrorModel, CodeModelTimeout, "the model did not answer in time", err)
	default:
		return turnError(ErrorModel, CodeModelFailed, "the model request failed", err)
	}
}

func executionError(err error) *TurnError {
	switch {
	case errors.Is(err, exec.ErrTimeout):
		return turnError(ErrorExecution, CodeExecutionTimeout, "the query timed out", err)
	case errors.Is(err, exec.ErrResultTooLarge):
		return turnError(ErrorExecution, CodeExecutionTooBig, err.Error(), err)
	default:
		return turnError(ErrorExecution, CodeExecutionFailed, err.Error(), err)
	}
}

func modelOutcome(err error) string {
	switch {
	case errors.Is(err, model.ErrNotConfigured):
		return "not_configured"
	case errors.Is(err, model.ErrEmptyAnswer):
		return "empty"
	case errors.Is(err, model.ErrMalformedAnswer):
		return "malformed"
	case isTimeout(err):
		return "timeout"
	default:
		return "failed"
	}
}

func executionOutcome(err error) string {
	switch {
	case errors.Is(err, exec.ErrTimeout):
		return "timeout"
	case errors.Is(err, exec.ErrResultTooLarge):
		return "too_large"
	default:
		return "failed"
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
