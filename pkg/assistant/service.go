package assistant

import (
	"context"
	"errors"
)

var (
	ErrNoAPIKey         = errors.New("api key is not set")
	ErrNothingToRerun   = errors.New("nothing to rerun")
	ErrInvalidParam     = errors.New("invalid parameter")
	ErrStoreUnavailable = errors.New("session store unavailable")
)

type ChatResponse struct {
	Content string
	Done    bool
}

type ChatResponseFunc func(ChatResponse) error

type Param int

const (
	ParamModel Param = iota
	ParamTemperature
	ParamTopP
)

func (p Param) String() string {
	switch p {
	case ParamModel:
		return "model"
	case ParamTemperature:
		return "temperature"
	case ParamTopP:
		return "top_p"
	}
	return "unknown"
}

type Service interface {
	Chat(ctx context.Context, chatID int64, content string, fn ChatResponseFunc) (string, error)
	Rerun(ctx context.Context, chatID int64, fn ChatResponseFunc) (string, error)
	SetAPIKey(ctx context.Context, chatID int64, key string) error
	Clear(ctx context.Context, chatID int64) error
	SetParam(ctx context.Context, chatID int64, param Param, value string) (Params, error)
	Params(ctx context.Context, chatID int64) (Params, error)
}

// SessionStore persists sessions by chat id. Get on an unknown chat returns an
// empty session and no error.
type SessionStore interface {
	Get(ctx context.Context, chatID int64) (Session, error)
	Put(ctx context.Context, session Session) error
}

// CompletionRequest is one call to the language model.
type CompletionRequest struct {
	APIKey      string
	Model       string
	Temperature float64
	TopP        float64
	Messages    []Message
}

// Completer streams a completion, calling fn with every delta, and returns the
// full text.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest, fn ChatResponseFunc) (string, error)
}
