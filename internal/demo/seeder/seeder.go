// Package seeder generates a synthetic customers spreadsheet and walks
// it through a full conversation: create a session, upload the file,
// ask the built-in example questions. It doubles as a smoke test for a
// running stack and as a fixture generator for manual testing.
package seeder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
)

type Service struct {
	cfg  Config
	log  *slog.Logger
	http *http.Client
}

type sessionEnvelope struct {
	Session struct {
		ID string `json:"id"`
	} `json:"session"`
}

type uploadEnvelope struct {
	Table struct {
		RowCount int `json:"row_count"`
	} `json:"table"`
}

type turnEnvelope struct {
	Turn struct {
		Index  int `json:"index"`
		Result struct {
			Kind  string `json:"kind"`
			Error *struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		} `json:"result"`
		ElapsedMS int64 `json:"elapsed_ms"`
	} `json:"turn"`
}

func NewService(cfg Config, logger *slog.Logger, client *http.Client) (*Service, error) {
	if cfg.RunConversation && strings.TrimSpace(cfg.APIBaseURL) == "" {
		return nil, fmt.Errorf("api base url is required")
	}
	if cfg.Rows <= 0 {
		return nil, fmt.Errorf("row count must be > 0")
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.HTTPTimeout}
	}

	return &Service{cfg: cfg, log: logger, http: client}, nil
}

func (s *Service) Run(ctx context.Context) error {
	dataset := Generate(s.cfg.Rows, s.cfg.Seed)

	if s.cfg.WriteFiles {
		csvPath, xlsxPath, err := dataset.SaveFiles(s.cfg.OutputDir)
		if err != nil {
			return fmt.Errorf("write dataset files: %w", err)
		}
		s.log.Info("wrote demo dataset",
			slog.String("csv", csvPath),
			slog.String("xlsx", xlsxPath),
			slog.Int("rows", s.cfg.Rows),
		)
	}

	if !s.cfg.RunConversation {
		return nil
	}

	sessionID, err := s.createSession(ctx)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	s.log.Info("created demo session", slog.String("session_id", sessionID))

	rowCount, err := s.upload(ctx, sessionID, dataset)
	if err != nil {
		return fmt.Errorf("upload dataset: %w", err)
	}
	s.log.Info("uploaded demo dataset", slog.String("session_id", sessionID), slog.Int("rows", rowCount))

	for _, question := range s.cfg.Questions {
		if err := s.askOnce(ctx, sessionID, question); err != nil {
			return fmt.Errorf("ask %q: %w", question, err)
		}
	}
	s.log.Info("demo conversation finished",
		slog.String("session_id", sessionID),
		slog.Int("questions", len(s.cfg.Questions)),
	)
	return nil
}

func (s *Service) createSession(ctx context.Context) (string, error) {
	var envelope sessionEnvelope
	status, body, err := s.doJSON(ctx, http.MethodPost, "/v1/sessions", nil, &envelope)
	if err != nil {
		return "", err
	}
	if status != http.StatusCreated {
		return "", fmt.Errorf("status %d: %s", status, strings.TrimSpace(string(body)))
	}
	if envelope.Session.ID == "" {
		return "", fmt.Errorf("response carried no session id")
	}
	return envelope.Session.ID, nil
}

func (s *Service) upload(ctx context.Context, sessionID string, dataset Dataset) (int, error) {
	csvData, err := dataset.CSVBytes()
	if err != nil {
		return 0, err
	}
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "customers.csv")
	if err != nil {
		return 0, err
	}
	if _, err := part.Write(csvData); err != nil {
		return 0, err
	}
	if err := writer.Close(); err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.APIBaseURL+"/v1/sessions/"+sessionID+"/upload", &buf)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if s.cfg.APIKey != "" {
		req.Header.Set("X-API-Key", s.cfg.APIKey)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, err
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var envelope uploadEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return 0, fmt.Errorf("decode upload response: %w", err)
	}
	return envelope.Table.RowCount, nil
}

// askOnce sends one question. Turns that come back with an error result
// are logged and do not abort the run: a transcript with a failed turn
// is still a valid conversation.
func (s *Service) askOnce(ctx context.Context, sessionID, question string) error {
	var envelope turnEnvelope
	status, body, err := s.doJSON(ctx, http.MethodPost, "/v1/sessions/"+sessionID+"/ask",
		map[string]string{"question": question}, &envelope)
	if err != nil {
		return err
	}
	if envelope.Turn.Result.Kind == "" {
		return fmt.Errorf("status %d: %s", status, strings.TrimSpace(string(body)))
	}

	attrs := []any{
		slog.String("session_id", sessionID),
		slog.Int("turn", envelope.Turn.Index),
		slog.String("question", question),
		slog.String("result_kind", envelope.Turn.Result.Kind),
		slog.Int64("elapsed_ms", envelope.Turn.ElapsedMS),
	}
	if errResult := envelope.Turn.Result.Error; errResult != nil {
		attrs = append(attrs, slog.String("error_code", errResult.Code), slog.String("error_message", errResult.Message))
		s.log.Warn("turn failed", attrs...)
		return nil
	}
	s.log.Info("turn answered", attrs...)
	return nil
}

func (s *Service) doJSON(ctx context.Context, method, path string, requestBody any, responseBody any) (int, []byte, error) {
	var payload io.Reader
	if requestBody != nil {
		raw, err := json.Marshal(requestBody)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal request body: %w", err)
		}
		payload = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.cfg.APIBaseURL+path, payload)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if requestBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.cfg.APIKey != "" {
		req.Header.Set("X-API-Key", s.cfg.APIKey)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}

	if responseBody != nil && len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, responseBody); err != nil {
			return resp.StatusCode, body, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, body, nil
}
