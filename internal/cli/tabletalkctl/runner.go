// Package tabletalkctl implements the command line client for the
// conversation API. It is a thin HTTP wrapper: every command maps to
// one endpoint and prints the JSON response.
package tabletalkctl

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Options struct {
	BaseURL    string
	APIKey     string
	SessionID  string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdout     io.Writer
	Stderr     io.Writer
}

func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	fs := flag.NewFlagSet("tabletalkctl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	baseURL := fs.String("base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8080"), "TableTalk API base URL")
	apiKey := fs.String("api-key", defaults.APIKey, "API key for authenticated requests")
	sessionID := fs.String("session", defaults.SessionID, "Session ID for session scoped commands")
	timeout := fs.Duration("timeout", durationOr(defaults.Timeout, 30*time.Second), "HTTP timeout (e.g. 30s)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		writeUsage(stderr)
		return 2
	}

	client := defaults.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: *timeout}
	}

	command := strings.TrimSpace(fs.Arg(0))
	rest := fs.Args()[1:]
	base := strings.TrimRight(*baseURL, "/")

	var (
		req *request
		err error
	)
	switch command {
	case "health":
		req = &request{method: http.MethodGet, url: base + "/v1/health"}
	case "ready":
		req = &request{method: http.MethodGet, url: base + "/v1/ready"}
	case "examples":
		req = &request{method: http.MethodGet, url: base + "/v1/examples"}
	case "session-create":
		req = &request{method: http.MethodPost, url: base + "/v1/sessions"}
	case "session-info":
		req, err = sessionRequest(base, *sessionID, http.MethodGet, "")
	case "session-delete":
		req, err = sessionRequest(base, *sessionID, http.MethodDelete, "")
	case "table":
		req, err = sessionRequest(base, *sessionID, http.MethodGet, "/table")
	case "transcript":
		req, err = sessionRequest(base, *sessionID, http.MethodGet, "/transcript")
	case "upload":
		if len(rest) != 1 {
			err = fmt.Errorf("upload needs exactly one file argument")
			break
		}
		req, err = uploadRequest(base, *sessionID, rest[0])
	case "ask":
		if len(rest) == 0 {
			err = fmt.Errorf("ask needs a question argument")
			break
		}
		req, err = askRequest(base, *sessionID, strings.Join(rest, " "))
	case "result-csv":
		if len(rest) != 1 {
			err = fmt.Errorf("result-csv needs a turn index argument")
			break
		}
		var index int
		index, err = strconv.Atoi(rest[0])
		if err != nil {
			err = fmt.Errorf("turn index %q is not a number", rest[0])
			break
		}
		req, err = sessionRequest(base, *sessionID, http.MethodGet, fmt.Sprintf("/turns/%d/result.csv", index))
		if req != nil {
			req.raw = true
		}
	default:
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n\n", command)
		writeUsage(stderr)
		return 2
	}
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "%v\n\n", err)
		writeUsage(stderr)
		return 2
	}

	code, responseBody, err := doRequest(ctx, client, req, *apiKey)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "request failed: %v\n", err)
		return 1
	}

	if code >= 400 {
		_, _ = fmt.Fprintf(stderr, "http %d: %s\n", code, strings.TrimSpace(string(responseBody)))
		return 1
	}

	if req.raw {
		_, _ = stdout.Write(responseBody)
		return 0
	}
	if pretty, ok := prettyJSON(responseBody); ok {
		_, _ = fmt.Fprintln(stdout, pretty)
		return 0
	}
	if len(responseBody) > 0 {
		_, _ = fmt.Fprintln(stdout, string(responseBody))
	}
	return 0
}

type request struct {
	method      string
	url         string
	body        io.Reader
	contentType string
	raw         bool
}

func sessionRequest(base, sessionID, method, suffix string) (*request, error) {
	id := strings.TrimSpace(sessionID)
	if id == "" {
		return nil, fmt.Errorf("a -session id is required for this command")
	}
	return &request{method: method, url: base + "/v1/sessions/" + id + suffix}, nil
}

func uploadRequest(base, sessionID, path string) (*request, error) {
	req, err := sessionRequest(base, sessionID, http.MethodPost, "/upload")
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	req.body = &buf
	req.contentType = writer.FormDataContentType()
	return req, nil
}

func askRequest(base, sessionID, question string) (*request, error) {
	req, err := sessionRequest(base, sessionID, http.MethodPost, "/ask")
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(map[string]string{"question": question})
	if err != nil {
		return nil, err
	}
	req.body = bytes.NewReader(payload)
	req.contentType = "application/json"
	return req, nil
}

func doRequest(ctx context.Context, client *http.Client, r *request, apiKey string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, r.method, r.url, r.body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if strings.TrimSpace(apiKey) != "" {
		req.Header.Set("X-API-Key", strings.TrimSpace(apiKey))
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}

func prettyJSON(raw []byte) (string, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var anyValue any
	if err := json.Unmarshal(raw, &anyValue); err != nil {
		return "", false
	}
	formatted, err := json.MarshalIndent(anyValue, "", "  ")
	if err != nil {
		return "", false
	}
	return string(formatted), true
}

func writeUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: tabletalkctl [flags] <command> [args]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "commands:")
	_, _ = fmt.Fprintln(w, "  health                GET /v1/health")
	_, _ = fmt.Fprintln(w, "  ready                 GET /v1/ready")
	_, _ = fmt.Fprintln(w, "  examples              GET /v1/examples")
	_, _ = fmt.Fprintln(w, "  session-create        POST /v1/sessions")
	_, _ = fmt.Fprintln(w, "  session-info          GET /v1/sessions/{id}")
	_, _ = fmt.Fprintln(w, "  session-delete        DELETE /v1/sessions/{id}")
	_, _ = fmt.Fprintln(w, "  upload <file>         POST /v1/sessions/{id}/upload")
	_, _ = fmt.Fprintln(w, "  table                 GET /v1/sessions/{id}/table")
	_, _ = fmt.Fprintln(w, "  ask <question...>     POST /v1/sessions/{id}/ask")
	_, _ = fmt.Fprintln(w, "  transcript            GET /v1/sessions/{id}/transcript")
	_, _ = fmt.Fprintln(w, "  result-csv <turn>     GET /v1/sessions/{id}/turns/{turn}/result.csv")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "session scoped commands need -session <id>.")
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
