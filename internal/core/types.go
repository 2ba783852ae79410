package core

import "encoding/json"

// Message roles understood by chat-completion providers
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// SystemInstruction is sent as the first message of every completion
const SystemInstruction = "You are TimeFlow, an AI day-planner."

// CompletionRequest is the body accepted by the completion endpoint
type CompletionRequest struct {
	Prompt string `json:"prompt" example:"What's on my schedule today?"`
	Model  string `json:"model,omitempty" example:"gpt-4o-mini"`
}

// CompletionResponse is the body returned on success
type CompletionResponse struct {
	Content string          `json:"content"`
	Usage   json.RawMessage `json:"usage"`
}

// Message represents a single message in the chat
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completion is the provider-neutral result of a completion call.
// Usage holds the provider's usage object as it arrived on the wire.
type Completion struct {
	Text  string
	Usage json.RawMessage
	Model string
}

// Identity is the caller resolved from a verified bearer token
type Identity struct {
	UID      string
	Provider string
}

// BuildMessages returns the system instruction followed by the prompt as a single user turn.
func BuildMessages(prompt string) []Message {
	return []Message{
		{Role: RoleSystem, Content: SystemInstruction},
		{Role: RoleUser, Content: prompt},
	}
}
