package enrich

import (
	"context"
	"fmt"
	"strings"

	"fortidsminder/pkg/chat"
	"fortidsminder/pkg/logger"
	"fortidsminder/pkg/ratelimit"
	"fortidsminder/pkg/retry"
)

// Generator produces a definition for one category label. Implementations
// report failure through Result rather than panicking or returning errors.
type Generator interface {
	Generate(ctx context.Context, label string) Result
}

// GeneratorFunc adapts a plain function to Generator. Errors and blank
// text become failures.
type GeneratorFunc func(ctx context.Context, label string) (string, []string, error)

func (f GeneratorFunc) Generate(ctx context.Context, label string) Result {
	text, sources, err := f(ctx, label)
	if err != nil {
		return Failure(err)
	}
	if strings.TrimSpace(text) == "" {
		return Failure(ErrEmptyDefinition)
	}
	return Success(text, sources)
}

// promptTemplate asks for a short Danish definition of one monument type
const promptTemplate = "Din opgave er at generere en general kort definition af en specifik type fortidsminde. " +
	"Definitionen bør være 1-2 linjer. " +
	"Definitionen skal bruges til en spændende app som skal engagere danskere i kulturarv. " +
	"TYPE: %s"

// BuildPrompt returns the prompt sent for label
func BuildPrompt(label string) string {
	return fmt.Sprintf(promptTemplate, label)
}

// Querier is the part of the chat client a ChatGenerator needs
type Querier interface {
	Query(ctx context.Context, prompt string, opts chat.QueryOptions) (chat.Response, error)
}

// ChatGenerator generates definitions through the chat service, pacing
// calls with a rate limiter and retrying transient failures
type ChatGenerator struct {
	client    Querier
	limiter   ratelimit.Limiter
	retry     *retry.Config
	webSearch bool
	logger    logger.Logger
}

// NewChatGenerator wires a chat client into a Generator. A nil limiter
// disables pacing; a nil retry config makes one attempt per row.
func NewChatGenerator(client Querier, limiter ratelimit.Limiter, retryCfg *retry.Config, webSearch bool, log logger.Logger) *ChatGenerator {
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	if retryCfg == nil {
		retryCfg = &retry.Config{MaxAttempts: 1}
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &ChatGenerator{
		client:    client,
		limiter:   limiter,
		retry:     retryCfg,
		webSearch: webSearch,
		logger:    log,
	}
}

// Generate asks the chat service for label's definition. With web search
// on, a failure to read sources keeps the text and records no sources.
func (g *ChatGenerator) Generate(ctx context.Context, label string) Result {
	prompt := BuildPrompt(label)

	resp, err := retry.DoWithResult(ctx, func(ctx context.Context) (chat.Response, error) {
		if err := g.limiter.Wait(ctx); err != nil {
			return chat.Response{}, err
		}
		return g.client.Query(ctx, prompt, chat.QueryOptions{WebSearch: g.webSearch})
	}, g.retry)
	if err != nil {
		g.logger.WarnWithFields("definition generation failed", map[string]interface{}{
			"label": label,
			"error": err.Error(),
		})
		return Failure(err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return Failure(ErrEmptyDefinition)
	}

	sources := resp.Sources
	if !g.webSearch || resp.SourcesErr != nil {
		sources = nil
	}
	if resp.SourcesErr != nil {
		g.logger.WarnWithFields("web search sources unavailable", map[string]interface{}{
			"label": label,
			"error": resp.SourcesErr.Error(),
		})
	}

	g.logger.DebugWithFields("definition generated", map[string]interface{}{
		"label":   label,
		"sources": len(sources),
	})
	return Success(text, sources)
}
