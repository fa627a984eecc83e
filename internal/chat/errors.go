package chat

import "fmt"

// ErrorKind names the stage a turn failed in. Every kind is caught at
// the turn boundary; none of them ends the session.
type ErrorKind string

const (
	ErrorUpload    ErrorKind = "upload"
	ErrorModel     ErrorKind = "model"
	ErrorExecution ErrorKind = "execution"
	ErrorRender    ErrorKind = "render"
)

// Stable error codes surfaced to clients and recorded in transcripts.
const (
	CodeUploadUnsupported = "UPLOAD_UNSUPPORTED"
	CodeUploadEmpty       = "UPLOAD_EMPTY"
	CodeUploadTooLarge    = "UPLOAD_TOO_LARGE"
	CodeUploadInvalid     = "UPLOAD_INVALID"
	CodeUploadFailed      = "UPLOAD_FAILED"

	CodeModelNotConfigured = "MODEL_NOT_CONFIGURED"
	CodeModelEmpty         = "MODEL_EMPTY"
	CodeModelMalformed     = "MODEL_MALFORMED"
	CodeModelTimeout       = "MODEL_TIMEOUT"
	CodeModelFailed        = "MODEL_FAILED"

	CodeExecutionRejected = "EXECUTION_REJECTED"
	CodeExecutionTimeout  = "EXECUTION_TIMEOUT"
	CodeExecutionTooBig   = "EXECUTION_TOO_LARGE"
	CodeExecutionFailed   = "EXECUTION_FAILED"

	CodeRenderFailed = "RENDER_FAILED"
)

// TurnError is a failure attributed to one stage of a turn. Message is
// user-presentable; Err keeps the full cause for logs.
type TurnError struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

func (e *TurnError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *TurnError) Unwrap() error {
	return e.Err
}

func turnError(kind ErrorKind, code, message string, err error) *TurnError {
	return &TurnError{Kind: kind, Code: code, Message: message, Err: err}
}
