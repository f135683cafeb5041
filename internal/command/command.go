// Package command classifies incoming chat text into a command kind.
package command

import (
	"strings"
	"unicode"
)

type Kind int

const (
	KindNone Kind = iota
	KindChat
	KindSetToken
	KindStart
	KindClear
	KindRerun
	KindModel
	KindTemperature
	KindTopP
	KindParams
	KindUnknown
)

var kindNames = map[Kind]string{
	KindNone:        "none",
	KindChat:        "chat",
	KindSetToken:    "token",
	KindStart:       "start",
	KindClear:       "clear",
	KindRerun:       "rerun",
	KindModel:       "model",
	KindTemperature: "temp",
	KindTopP:        "top_p",
	KindParams:      "params",
	KindUnknown:     "unknown",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Command is the classified form of one message. Text holds the whole message
// for KindChat and the argument for commands. Bot is the username from a
// "/cmd@bot" suffix, empty when the command is not addressed.
type Command struct {
	Kind Kind
	Name string
	Bot  string
	Text string
}

// AddressedTo reports whether the command is meant for the bot with the given
// username. Unaddressed commands are meant for every bot in the chat.
func (c Command) AddressedTo(username string) bool {
	return c.Bot == "" || strings.EqualFold(c.Bot, username)
}

type Description struct {
	Name        string
	Description string
}

// Descriptions is the command menu, in display order.
var Descriptions = []Description{
	{Name: "start", Description: "Start the conversation"},
	{Name: "token", Description: "Set OpenAI API token"},
	{Name: "clear", Description: "Clear the conversation"},
	{Name: "rerun", Description: "Rerun the conversation"},
	{Name: "model", Description: "Set the model"},
	{Name: "temp", Description: "Set the temperature"},
	{Name: "top_p", Description: "Set the top_p"},
	{Name: "params", Description: "Show the current parameters"},
}

var byName = map[string]Kind{
	"token":  KindSetToken,
	"start":  KindStart,
	"clear":  KindClear,
	"rerun":  KindRerun,
	"model":  KindModel,
	"temp":   KindTemperature,
	"top_p":  KindTopP,
	"params": KindParams,
}

func Parse(text string) Command {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Command{Kind: KindNone}
	}
	if !strings.HasPrefix(trimmed, "/") {
		return Command{Kind: KindChat, Text: text}
	}

	head, rest := trimmed, ""
	if i := strings.IndexFunc(trimmed, unicode.IsSpace); i >= 0 {
		head, rest = trimmed[:i], strings.TrimSpace(trimmed[i:])
	}

	name, bot := strings.TrimPrefix(head, "/"), ""
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name, bot = name[:at], name[at+1:]
	}
	name = strings.ToLower(name)

	kind, ok := byName[name]
	if !ok {
		kind = KindUnknown
	}
	return Command{Kind: kind, Name: name, Bot: bot, Text: rest}
}

// Arg returns the first whitespace separated argument.
func (c Command) Arg() string {
	fields := strings.Fields(c.Text)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
