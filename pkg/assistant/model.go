package assistant

import (
	"fmt"
	"strconv"
	"strings"
)

type Role = string

const (
	RoleAssistant Role = "assistant"
	RoleUser      Role = "user"
)

type Message struct {
	Role    Role   `json:"role" dynamodbav:"role"`
	Content string `json:"content" dynamodbav:"content"`
}

// Params are per-chat overrides of the completion defaults. Nil fields fall
// back to the configured defaults.
type Params struct {
	Model       *string  `json:"model,omitempty" dynamodbav:"model,omitempty"`
	Temperature *float64 `json:"temperature,omitempty" dynamodbav:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty" dynamodbav:"top_p,omitempty"`
}

func (p Params) String() string {
	var parts []string
	if p.Model != nil {
		parts = append(parts, "model="+*p.Model)
	}
	if p.Temperature != nil {
		parts = append(parts, "temperature="+strconv.FormatFloat(*p.Temperature, 'g', -1, 64))
	}
	if p.TopP != nil {
		parts = append(parts, "top_p="+strconv.FormatFloat(*p.TopP, 'g', -1, 64))
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}

// Session is everything stored for one chat.
type Session struct {
	ChatID   int64     `json:"chat_id"`
	APIKey   string    `json:"api_key,omitempty"`
	Messages []Message `json:"messages"`
	Params   Params    `json:"params"`
}

func (s *Session) AddMessage(role Role, content string) {
	s.Messages = append(s.Messages, Message{
		Role:    role,
		Content: content,
	})
}

// Clone returns a deep copy, so that appending to the copy never touches the
// original's backing arrays.
func (s Session) Clone() Session {
	c := s
	if s.Messages != nil {
		c.Messages = make([]Message, len(s.Messages))
		copy(c.Messages, s.Messages)
	}
	c.Params = s.Params.clone()
	return c
}

func (p Params) clone() Params {
	var c Params
	if p.Model != nil {
		v := *p.Model
		c.Model = &v
	}
	if p.Temperature != nil {
		v := *p.Temperature
		c.Temperature = &v
	}
	if p.TopP != nil {
		v := *p.TopP
		c.TopP = &v
	}
	return c
}

func (s Session) String() string {
	return fmt.Sprintf("session(chat=%d, messages=%d)", s.ChatID, len(s.Messages))
}
