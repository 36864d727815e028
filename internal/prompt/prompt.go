// Package prompt renders the raw completion prompt sent to the generation
// server.
//
// The server has no chat structure of its own, so turns are encoded with
// Llama-3 header tags and replayed one by one. The rendered prompt ends with
// an open assistant header for the model to complete.
package prompt

import (
	"strings"
	"time"

	"sophie/internal/conversation"
)

const (
	beginText   = "<|begin_of_text|>"
	endOfTurn   = "<|eot_id|>"
	systemBlock = "<|start_header_id|>system<|end_header_id|>"
	userBlock   = "<|start_header_id|>user<|end_header_id|>"
	botBlock    = "<|start_header_id|>assistant<|end_header_id|>"

	// NoteMarker opens the author's note. Its absence in a prompt means no
	// facts were retrieved for the turn.
	NoteMarker = "[Authors Note:"

	TimeLayout = "15:04"
)

// DefaultPersona is the system preamble. {bot} is replaced with the bot name.
const DefaultPersona = "You are {bot}, the user’s closest childhood friend, always there for them no matter what. " +
	"You’re warm, funny, and quick-witted, with a knack for making people feel comfortable. " +
	"You love chatting, cracking jokes, and being supportive whenever they need someone to talk to. " +
	"This is roleplay, and you are their trusted friend, not an AI. " +
	"Never break character and always be their favorite person to talk to. " +
	"Keep your responses concise but maintain the warmth and humor that makes you their favorite person."

// Context is everything one turn's prompt is rendered from. It is built per
// turn and discarded.
type Context struct {
	Speaker   string
	Utterance string
	History   []conversation.Turn

	// Facts is only rendered when HasFacts is set.
	Facts    string
	HasFacts bool

	Time string
}

type Builder struct {
	bot     string
	persona string
}

// NewBuilder returns a builder for the named bot. An empty persona selects
// DefaultPersona.
func NewBuilder(bot, persona string) *Builder {
	if persona == "" {
		persona = DefaultPersona
	}
	return &Builder{
		bot:     bot,
		persona: strings.ReplaceAll(persona, "{bot}", bot),
	}
}

// StopStrings are the speaker prefixes at which generation must stop so the
// model does not write the user's next line.
func (b *Builder) StopStrings() []string {
	return []string{"User:", "Bot:", "You:", "Me:", b.bot + ":"}
}

// Build renders c. History turns come first in append order, then the
// current utterance with the author's note directly after it, then an empty
// assistant header.
func (b *Builder) Build(c Context) string {
	var sb strings.Builder

	sb.WriteString(beginText)
	sb.WriteString(systemBlock)
	sb.WriteString(b.persona)

	for _, t := range c.History {
		b.writeUser(&sb, t.UserName, t.Utterance)
		sb.WriteString(endOfTurn)
		sb.WriteString(botBlock)
		sb.WriteString(b.bot)
		sb.WriteString(": ")
		sb.WriteString(t.Reply)
	}

	sb.WriteString(" ")
	b.writeUser(&sb, c.Speaker, c.Utterance)
	if c.HasFacts {
		sb.WriteString(authorsNote(c.Time, c.Facts))
	}
	sb.WriteString(endOfTurn)
	sb.WriteString(botBlock)
	sb.WriteString(b.bot)
	sb.WriteString(":")

	return sb.String()
}

func (b *Builder) writeUser(sb *strings.Builder, name, text string) {
	sb.WriteString(endOfTurn)
	sb.WriteString(userBlock)
	sb.WriteString(name)
	sb.WriteString(": ")
	sb.WriteString(text)
}

func authorsNote(now, facts string) string {
	return NoteMarker + " The current time is " + now + ". Database results: " + facts +
		". This is only information for you, it is not coming from the user. Please use the 24H clock.]"
}

// FormatTime renders t on a 24 hour clock in loc.
func FormatTime(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format(TimeLayout)
}
