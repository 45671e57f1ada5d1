package gateway

import "encoding/json"

// Event is the JSON envelope pushed to observers.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Outbound event types.
const (
	EventChatMessage = "CHAT_MESSAGE"
	EventAgentAction = "agent_action"
	EventStateUpdate = "state_update"
)

// Inbound message types.
const (
	InboundAskLLM      = "ASK_LLM"
	InboundUserMessage = "USER_MESSAGE"
)

// ChatPayload carries a chat line from an agent.
type ChatPayload struct {
	SenderID string `json:"senderId"`
	Sender   string `json:"sender,omitempty"`
	Text     string `json:"text"`
}

// AgentActionPayload reports a single agent's reaction to something.
type AgentActionPayload struct {
	AgentID string  `json:"agent_id"`
	Message string  `json:"message"`
	NewMood float64 `json:"new_mood"`
}

// Inbound is a message received from an observer connection.
type Inbound struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AskPayload is the payload of an ASK_LLM inbound message.
type AskPayload struct {
	AgentID string `json:"agentId"`
	Prompt  string `json:"prompt"`
}

// UserMessagePayload is the payload of a USER_MESSAGE inbound message.
// AgentID is optional; when empty the first responder is chosen at random.
type UserMessagePayload struct {
	AgentID string `json:"agentId,omitempty"`
	Text    string `json:"text"`
}

// InboundHandler processes messages arriving on observer connections.
type InboundHandler func(msg *Inbound)
