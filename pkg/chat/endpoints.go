package chat

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	// DefaultBaseURL is the hosted chat service
	DefaultBaseURL = "https://huggingface.co/chat"

	loginEndpoint        = "/login"
	modelsEndpoint       = "/api/models"
	conversationEndpoint = "/conversation"
)

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + path
}

func loginURL(base string) string {
	return joinURL(base, loginEndpoint)
}

func modelsURL(base string) string {
	return joinURL(base, modelsEndpoint)
}

func newConversationURL(base string) string {
	return joinURL(base, conversationEndpoint)
}

func conversationURL(base, id string) string {
	return fmt.Sprintf("%s/%s", joinURL(base, conversationEndpoint), url.PathEscape(id))
}
