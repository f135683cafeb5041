package assistant

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	assistantpkg "telegpt/pkg/assistant"
	"telegpt/pkg/optional"
)

type Defaults struct {
	Model       string
	Temperature float64
	TopP        float64
	Timeout     time.Duration
}

type Service struct {
	store     assistantpkg.SessionStore
	completer assistantpkg.Completer
	defaults  Defaults
}

func NewService(store assistantpkg.SessionStore, completer assistantpkg.Completer, defaults Defaults) *Service {
	return &Service{
		store:     store,
		completer: completer,
		defaults:  defaults,
	}
}

func (svc *Service) Session(ctx context.Context, chatID int64) (assistantpkg.Session, error) {
	s, err := svc.store.Get(ctx, chatID)
	if err != nil {
		return assistantpkg.Session{}, err
	}
	s.ChatID = chatID
	return s.Clone(), nil
}

// Chat runs one turn. The session is written back only after the model
// answered, so a failed turn leaves the stored history untouched.
func (svc *Service) Chat(ctx context.Context, chatID int64, content string, fn assistantpkg.ChatResponseFunc) (string, error) {
	s, err := svc.Session(ctx, chatID)
	if err != nil {
		return "", err
	}
	if s.APIKey == "" {
		return "", assistantpkg.ErrNoAPIKey
	}

	s.AddMessage(assistantpkg.RoleUser, content)
	return svc.complete(ctx, s, fn)
}

// Rerun drops the trailing assistant replies and asks the model again.
func (svc *Service) Rerun(ctx context.Context, chatID int64, fn assistantpkg.ChatResponseFunc) (string, error) {
	s, err := svc.Session(ctx, chatID)
	if err != nil {
		return "", err
	}

	n := len(s.Messages)
	for n > 0 && s.Messages[n-1].Role == assistantpkg.RoleAssistant {
		n--
	}
	if n == 0 {
		return "", assistantpkg.ErrNothingToRerun
	}
	if s.APIKey == "" {
		return "", assistantpkg.ErrNoAPIKey
	}
	s.Messages = s.Messages[:n]

	return svc.complete(ctx, s, fn)
}

func (svc *Service) complete(ctx context.Context, s assistantpkg.Session, fn assistantpkg.ChatResponseFunc) (string, error) {
	if svc.defaults.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, svc.defaults.Timeout)
		defer cancel()
	}

	reply, err := svc.completer.Complete(ctx, assistantpkg.CompletionRequest{
		APIKey:      s.APIKey,
		Model:       optional.Value(s.Params.Model, svc.defaults.Model),
		Temperature: optional.Value(s.Params.Temperature, svc.defaults.Temperature),
		TopP:        optional.Value(s.Params.TopP, svc.defaults.TopP),
		Messages:    s.Messages,
	}, fn)
	if err != nil {
		return "", fmt.Errorf("complete chat %d: %w", s.ChatID, err)
	}

	s.AddMessage(assistantpkg.RoleAssistant, reply)

	// The reply exists even if it could not be saved.
	if err := svc.store.Put(context.WithoutCancel(ctx), s); err != nil {
		return reply, err
	}
	return reply, nil
}

func (svc *Service) SetAPIKey(ctx context.Context, chatID int64, key string) error {
	s, err := svc.Session(ctx, chatID)
	if err != nil {
		return err
	}
	s.APIKey = key
	if s.Messages == nil {
		s.Messages = make([]assistantpkg.Message, 0)
	}
	return svc.store.Put(ctx, s)
}

func (svc *Service) Clear(ctx context.Context, chatID int64) error {
	s, err := svc.Session(ctx, chatID)
	if err != nil {
		return err
	}
	s.Messages = make([]assistantpkg.Message, 0)
	return svc.store.Put(ctx, s)
}

func (svc *Service) SetParam(ctx context.Context, chatID int64, param assistantpkg.Param, value string) (assistantpkg.Params, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return assistantpkg.Params{}, fmt.Errorf("%w: %s needs a value", assistantpkg.ErrInvalidParam, param)
	}

	s, err := svc.Session(ctx, chatID)
	if err != nil {
		return assistantpkg.Params{}, err
	}

	switch param {
	case assistantpkg.ParamModel:
		s.Params.Model = optional.Pointer(value)
	case assistantpkg.ParamTemperature:
		f, err := parseBounded(value, 0, 2)
		if err != nil {
			return assistantpkg.Params{}, fmt.Errorf("%w: %s %v", assistantpkg.ErrInvalidParam, param, err)
		}
		s.Params.Temperature = optional.Pointer(f)
	case assistantpkg.ParamTopP:
		f, err := parseBounded(value, 0, 1)
		if err != nil {
			return assistantpkg.Params{}, fmt.Errorf("%w: %s %v", assistantpkg.ErrInvalidParam, param, err)
		}
		s.Params.TopP = optional.Pointer(f)
	default:
		return assistantpkg.Params{}, fmt.Errorf("%w: %s", assistantpkg.ErrInvalidParam, param)
	}

	if s.Messages == nil {
		s.Messages = make([]assistantpkg.Message, 0)
	}
	if err := svc.store.Put(ctx, s); err != nil {
		return assistantpkg.Params{}, err
	}
	return s.Params, nil
}

func (svc *Service) Params(ctx context.Context, chatID int64) (assistantpkg.Params, error) {
	s, err := svc.Session(ctx, chatID)
	if err != nil {
		return assistantpkg.Params{}, err
	}
	return s.Params, nil
}

func parseBounded(value string, lo, hi float64) (float64, error) {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(f) {
		return 0, errors.New("must be a number")
	}
	if f < lo || f > hi {
		return 0, fmt.Errorf("must be between %g and %g", lo, hi)
	}
	return f, nil
}
