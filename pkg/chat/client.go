package chat

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	errs "fortidsminder/pkg/errors"
	"fortidsminder/pkg/logger"
)

// Options configures a Client
type Options struct {
	BaseURL string
	// CookieDir holds one <email>.json session cache per account
	CookieDir string
	Timeout   time.Duration
	UserAgent string
	// Model selects a model id; empty uses the first one the service lists
	Model string
}

// Client is a session with the hosted chat service. It must be logged in
// before Query and closed when done.
type Client struct {
	httpClient *http.Client
	opts       Options
	base       *url.URL
	logger     logger.Logger

	email          string
	loggedIn       bool
	activeModel    string
	conversationID string
}

// NewClient creates a chat client; it does not contact the service
func NewClient(opts Options, log logger.Logger) (*Client, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "fortidsminder/1.0"
	}

	base, err := url.Parse(opts.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid chat base URL %q", opts.BaseURL)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	return &Client{
		httpClient: &http.Client{Timeout: opts.Timeout, Jar: jar},
		opts:       opts,
		base:       base,
		logger:     log.WithField("component", "chat"),
	}, nil
}

// ActiveModel returns the model prompts are sent to, empty before login
func (c *Client) ActiveModel() string {
	return c.activeModel
}

// Login authenticates as email, reusing cached session cookies when they
// are still accepted
func (c *Client) Login(ctx context.Context, email, password string) error {
	if email == "" {
		return errs.New(errs.ErrorTypeAuth, 0, "email is required")
	}
	c.email = email

	if c.restoreCookies(email) {
		err := c.selectModel(ctx)
		if err == nil {
			c.loggedIn = true
			c.logger.InfoWithFields("reused cached chat session", map[string]interface{}{
				"email": email,
				"model": c.activeModel,
			})
			return nil
		}
		if errs.TypeOf(err) != errs.ErrorTypeAuth {
			return err
		}
		c.logger.WarnWithFields("cached session rejected, logging in again", map[string]interface{}{
			"email": email,
		})
		c.clearCookies()
	}

	if password == "" {
		return errs.New(errs.ErrorTypeAuth, 0, "password is required")
	}

	form := url.Values{}
	form.Set("username", email)
	form.Set("password", password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, loginURL(c.opts.BaseURL), strings.NewReader(form.Encode()))
	if err != nil {
		return errs.Wrap(errs.ErrorTypeUnknown, err, "failed to create login request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.doRequest(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkResponseStatus(resp); err != nil {
		return err
	}

	if err := c.selectModel(ctx); err != nil {
		return err
	}
	c.loggedIn = true

	if err := c.saveCookies(); err != nil {
		c.logger.WithError(err).Warn("failed to cache session cookies")
	}

	c.logger.InfoWithFields("logged in to chat service", map[string]interface{}{
		"email": email,
		"model": c.activeModel,
	})
	return nil
}

// Query sends prompt to the current conversation, creating one on first use
func (c *Client) Query(ctx context.Context, prompt string, opts QueryOptions) (Response, error) {
	if !c.loggedIn {
		return Response{}, errs.New(errs.ErrorTypeAuth, 0, "client is not logged in")
	}

	if c.conversationID == "" {
		if err := c.newConversation(ctx); err != nil {
			return Response{}, err
		}
	}

	body, err := json.Marshal(promptRequest{Inputs: prompt, WebSearch: opts.WebSearch})
	if err != nil {
		return Response{}, errs.Wrap(errs.ErrorTypeUnknown, err, "failed to encode prompt")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, conversationURL(c.opts.BaseURL, c.conversationID), bytes.NewReader(body))
	if err != nil {
		return Response{}, errs.Wrap(errs.ErrorTypeUnknown, err, "failed to create prompt request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.doRequest(req)
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()

	if err := c.checkResponseStatus(resp); err != nil {
		return Response{}, err
	}

	result, err := c.readStream(resp.Body)
	if err != nil {
		return Response{}, err
	}
	if result.Text == "" {
		return Response{}, errs.New(errs.ErrorTypeEmpty, resp.StatusCode, "chat service returned an empty answer")
	}
	return result, nil
}

// Close caches the session cookies and deletes the open conversation
func (c *Client) Close() error {
	if !c.loggedIn {
		return nil
	}

	if c.conversationID != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodDelete, conversationURL(c.opts.BaseURL, c.conversationID), nil)
		if err == nil {
			if resp, err := c.doRequest(req); err == nil {
				resp.Body.Close()
			}
		}
		c.conversationID = ""
	}

	c.loggedIn = false
	if err := c.saveCookies(); err != nil {
		return fmt.Errorf("failed to cache session cookies: %w", err)
	}

	c.logger.Debug("chat session closed")
	return nil
}

func (c *Client) selectModel(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, modelsURL(c.opts.BaseURL), nil)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeUnknown, err, "failed to create models request")
	}

	var models []modelInfo
	if err := c.doJSON(req, &models); err != nil {
		return err
	}

	if c.opts.Model != "" {
		for _, m := range models {
			if m.ID == c.opts.Model {
				c.activeModel = m.ID
				return nil
			}
		}
		return errs.New(errs.ErrorTypeUnknown, 0, "model %q is not offered by the chat service", c.opts.Model)
	}

	if len(models) == 0 {
		return errs.New(errs.ErrorTypeParsing, 0, "chat service lists no models")
	}
	c.activeModel = models[0].ID
	return nil
}

func (c *Client) newConversation(ctx context.Context) error {
	body, err := json.Marshal(newConversationRequest{Model: c.activeModel})
	if err != nil {
		return errs.Wrap(errs.ErrorTypeUnknown, err, "failed to encode conversation request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, newConversationURL(c.opts.BaseURL), bytes.NewReader(body))
	if err != nil {
		return errs.Wrap(errs.ErrorTypeUnknown, err, "failed to create conversation request")
	}
	req.Header.Set("Content-Type", "application/json")

	var created newConversationResponse
	if err := c.doJSON(req, &created); err != nil {
		return err
	}
	if created.ConversationID == "" {
		return errs.New(errs.ErrorTypeParsing, 0, "conversation id missing from response")
	}

	c.conversationID = created.ConversationID
	c.logger.DebugWithFields("conversation created", map[string]interface{}{
		"conversation_id": c.conversationID,
		"model":           c.activeModel,
	})
	return nil
}

// readStream folds a newline-delimited JSON event stream into a Response
func (c *Client) readStream(r io.Reader) (Response, error) {
	var (
		tokens strings.Builder
		final  string
		result = Response{Sources: []string{}}
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := strings.Trim(strings.TrimSpace(scanner.Text()), "\x00")
		if line == "" {
			continue
		}

		var event streamEvent
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			return Response{}, errs.Wrap(errs.ErrorTypeParsing, err, "failed to parse stream event")
		}

		switch event.Type {
		case "stream":
			tokens.WriteString(event.Token)
		case "finalAnswer":
			final = event.Text
		case "webSearch":
			if event.MessageType != "sources" {
				continue
			}
			sources, err := decodeSources(event.Sources)
			if err != nil {
				c.logger.WithError(err).Warn("failed to read web search sources")
				result.Sources = []string{}
				result.SourcesErr = err
				continue
			}
			result.Sources = sources
		case "error":
			return Response{}, errs.New(errs.ErrorTypeServerError, 0, "chat service error: %s", event.Message)
		}
	}
	if err := scanner.Err(); err != nil {
		return Response{}, errs.Wrap(errs.ErrorTypeNetwork, err, "failed to read response stream")
	}

	if final == "" {
		final = tokens.String()
	}
	result.Text = strings.TrimSpace(final)
	return result, nil
}

func decodeSources(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 {
		return []string{}, nil
	}
	var hints []webSearchHint
	if err := json.Unmarshal(raw, &hints); err != nil {
		return nil, fmt.Errorf("invalid sources payload: %w", err)
	}
	links := make([]string, 0, len(hints))
	for _, h := range hints {
		if h.Link != "" {
			links = append(links, h.Link)
		}
	}
	return links, nil
}

// doRequest performs an HTTP request with the configured headers
func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", c.opts.UserAgent)
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      req.URL.String(),
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, errs.Wrap(errs.ErrorTypeNetwork, err, "request failed")
	}

	logger.LogRequest(c.logger, req.Method, req.URL.String(), resp.StatusCode, float64(duration.Milliseconds()))
	return resp, nil
}

// doJSON performs req and decodes a JSON body into target
func (c *Client) doJSON(req *http.Request, target interface{}) error {
	resp, err := c.doRequest(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkResponseStatus(resp); err != nil {
		return err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeNetwork, err, "failed to read response body")
	}

	if err := json.Unmarshal(body, target); err != nil {
		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"url":          req.URL.String(),
			"status":       resp.StatusCode,
			"error":        err.Error(),
			"body_preview": preview(body),
		})
		return &errs.Error{
			Type:    errs.ErrorTypeParsing,
			Message: fmt.Sprintf("failed to parse JSON: %v", err),
			Code:    resp.StatusCode,
			Err:     err,
		}
	}
	return nil
}

// checkResponseStatus maps non-success statuses to typed errors
func (c *Client) checkResponseStatus(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	message := http.StatusText(resp.StatusCode)
	if text := strings.TrimSpace(string(body)); text != "" {
		message = preview([]byte(text))
	}

	apiErr := errs.FromStatus(resp.StatusCode, message)
	fields := map[string]interface{}{
		"status": resp.StatusCode,
		"type":   string(apiErr.Type),
	}
	if resp.Request != nil {
		fields["url"] = resp.Request.URL.String()
	}
	if apiErr.Type == errs.ErrorTypeServerError {
		c.logger.ErrorWithFields("chat service error", fields)
	} else {
		c.logger.WarnWithFields("chat request rejected", fields)
	}
	return apiErr
}

// preview shortens a body for logging without splitting a rune
func preview(body []byte) string {
	const limit = 200
	if len(body) <= limit {
		return string(body)
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return string(body[:cut]) + "..."
}
