package ai

import (
	"fmt"
	"strings"
)

// Assistant selects which persona (or personas) answer a conversation.
// BOTH is a dispatch mode, not a persona: it fans out to the therapist
// and friend personas concurrently.
type Assistant string

const (
	AssistantTherapist Assistant = "THERAPIST"
	AssistantFriend    Assistant = "FRIEND"
	AssistantBoth      Assistant = "BOTH"
)

// ParseAssistant normalizes and validates a client-supplied assistant value.
func ParseAssistant(s string) (Assistant, error) {
	switch Assistant(strings.ToUpper(strings.TrimSpace(s))) {
	case AssistantTherapist:
		return AssistantTherapist, nil
	case AssistantFriend:
		return AssistantFriend, nil
	case AssistantBoth:
		return AssistantBoth, nil
	default:
		return "", fmt.Errorf("unknown assistant %q", s)
	}
}

func (a Assistant) Valid() bool {
	return a == AssistantTherapist || a == AssistantFriend || a == AssistantBoth
}

// SafetySetting maps a harm category to its blocking threshold, passed
// through to the generation backend verbatim.
type SafetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

// Persona is an immutable system-instruction configuration for a single
// generation call. Loaded once at startup and passed explicitly into the
// invoker rather than read from ambient state at call time.
type Persona struct {
	Name              string
	SystemInstruction string
	SafetySettings    []SafetySetting
	Temperature       float32
	MaxOutputTokens   int
}

// defaultSafetySettings blocks medium-and-above content in the categories
// the backend scores. Both chat personas share it; the summarizer runs with
// the same thresholds since it only ever sees user text that already passed
// a chat call.
var defaultSafetySettings = []SafetySetting{
	{Category: "HARM_CATEGORY_HARASSMENT", Threshold: "BLOCK_MEDIUM_AND_ABOVE"},
	{Category: "HARM_CATEGORY_HATE_SPEECH", Threshold: "BLOCK_MEDIUM_AND_ABOVE"},
	{Category: "HARM_CATEGORY_SEXUALLY_EXPLICIT", Threshold: "BLOCK_MEDIUM_AND_ABOVE"},
	{Category: "HARM_CATEGORY_DANGEROUS_CONTENT", Threshold: "BLOCK_MEDIUM_AND_ABOVE"},
}

var therapistPersona = Persona{
	Name: "therapist",
	SystemInstruction: `You are a calm, professional therapist. Listen carefully, ` +
		`reflect what the user is feeling, and respond with empathy and structure. ` +
		`Ask gentle clarifying questions. Never diagnose or prescribe; suggest ` +
		`professional help when the topic is beyond a supportive conversation.`,
	SafetySettings:  defaultSafetySettings,
	Temperature:     0.7,
	MaxOutputTokens: 1024,
}

var friendPersona = Persona{
	Name: "friend",
	SystemInstruction: `You are the user's close friend. Be warm, casual, and honest. ` +
		`Use everyday language, share reactions, and keep the conversation light ` +
		`unless the user clearly needs support.`,
	SafetySettings:  defaultSafetySettings,
	Temperature:     0.9,
	MaxOutputTokens: 1024,
}

var summaryPersona = Persona{
	Name: "summarizer",
	SystemInstruction: `You generate short conversation titles. Reply with a single ` +
		`concise title of at most eight words that captures the topic of the ` +
		`message. Do not use quotes, punctuation at the end, or any preamble.`,
	SafetySettings:  defaultSafetySettings,
	Temperature:     0.1,
	MaxOutputTokens: 20,
}

// PersonaFor returns the persona configuration for a single-dispatch
// assistant. BOTH has no single persona; the dispatcher fans out instead.
func PersonaFor(a Assistant) (Persona, error) {
	switch a {
	case AssistantTherapist:
		return therapistPersona, nil
	case AssistantFriend:
		return friendPersona, nil
	default:
		return Persona{}, fmt.Errorf("no single persona for assistant %q", a)
	}
}

// SummaryPersona returns the summarization persona used for title refresh.
func SummaryPersona() Persona {
	return summaryPersona
}
