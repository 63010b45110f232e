package protocol

import (
	"errors"

	"github.com/foxseedlab/kikitori/internal/session"
)

const (
	CmdStart = "start"
	CmdPush  = "push"
	CmdEnd   = "end"
)

const (
	TypeResponse = "response"
	TypeEvent    = "event"

	EventCompleted = "completed"
)

const (
	CodeAlreadyActive       = "already_active"
	CodeNoSuchSession       = "no_such_session"
	CodeTranscodeFailed     = "transcode_failed"
	CodeTranscriptionFailed = "transcription_failed"
	CodeIOFailure           = "io_failure"
	CodeBadRequest          = "bad_request"
)

var ErrBadRequest = errors.New("bad request")

// Request is a client command. Data travels base64-encoded in JSON.
type Request struct {
	ID        string `json:"id"`
	Cmd       string `json:"cmd"`
	SessionID string `json:"sessionId"`
	Data      []byte `json:"data,omitempty"`
}

// Message is every frame the server sends: either a response to one request
// or an unsolicited event.
type Message struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	OK        bool   `json:"ok"`
	Text      string `json:"text,omitempty"`
	Error     string `json:"error,omitempty"`
	Code      string `json:"code,omitempty"`
	Event     string `json:"event,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
}

func NewResponse(id, text string, err error) Message {
	if err != nil {
		return Message{Type: TypeResponse, ID: id, Error: err.Error(), Code: CodeFor(err)}
	}
	return Message{Type: TypeResponse, ID: id, OK: true, Text: text}
}

func NewCompletedEvent(sessionID, text string, err error) Message {
	msg := Message{Type: TypeEvent, Event: EventCompleted, SessionID: sessionID, OK: err == nil, Text: text}
	if err != nil {
		msg.Error = err.Error()
		msg.Code = CodeFor(err)
	}
	return msg
}

var codeSentinels = []struct {
	code string
	err  error
}{
	{CodeAlreadyActive, session.ErrAlreadyActive},
	{CodeNoSuchSession, session.ErrNoSuchSession},
	{CodeTranscodeFailed, session.ErrTranscodeFailed},
	{CodeTranscriptionFailed, session.ErrTranscriptionFailed},
	{CodeIOFailure, session.ErrIOFailure},
	{CodeBadRequest, ErrBadRequest},
	{CodeBadRequest, session.ErrInvalidSessionID},
}

// CodeFor maps err onto a wire error code. Unknown errors are reported as
// io_failure.
func CodeFor(err error) string {
	for _, s := range codeSentinels {
		if errors.Is(err, s.err) {
			return s.code
		}
	}
	return CodeIOFailure
}

// RemoteError is an error reported by the other side of the boundary. It
// unwraps to the sentinel matching its code.
type RemoteError struct {
	Code    string
	Message string
}

func (e *RemoteError) Error() string {
	return e.Message
}

func (e *RemoteError) Unwrap() error {
	for _, s := range codeSentinels {
		if s.code == e.Code {
			return s.err
		}
	}
	return nil
}

func ErrorFor(code, message string) error {
	if message == "" {
		message = code
	}
	return &RemoteError{Code: code, Message: message}
}
