package chat

import "encoding/json"

// Response is the outcome of one prompt
type Response struct {
	Text    string
	Sources []string
	// SourcesErr is set when the answer arrived but its web sources could
	// not be read; Sources is then empty
	SourcesErr error
}

// QueryOptions tunes a single prompt
type QueryOptions struct {
	WebSearch bool
}

type modelInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type newConversationRequest struct {
	Model string `json:"model"`
}

type newConversationResponse struct {
	ConversationID string `json:"conversationId"`
}

type promptRequest struct {
	Inputs    string `json:"inputs"`
	WebSearch bool   `json:"web_search"`
}

// streamEvent is one JSON line of a prompt response stream
type streamEvent struct {
	Type        string          `json:"type"`
	Token       string          `json:"token,omitempty"`
	Text        string          `json:"text,omitempty"`
	MessageType string          `json:"messageType,omitempty"`
	Message     string          `json:"message,omitempty"`
	Sources     json.RawMessage `json:"sources,omitempty"`
}

type webSearchHint struct {
	Link  string `json:"link"`
	Title string `json:"title"`
}

// savedCookie is the on-disk form of a session cookie
type savedCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}
