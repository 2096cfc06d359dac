// Package chat is a client for the hosted chat service used to write
// monument definitions.
//
// A Client is an explicit session: Login authenticates (reusing a cached
// cookie file under the cookie directory when the service still accepts
// it), Query sends prompts into a single conversation, and Close deletes
// the conversation and refreshes the cookie cache.
//
//	client, err := chat.NewClient(chat.Options{BaseURL: cfg.Chat.BaseURL, CookieDir: "./cookies/"}, log)
//	if err != nil {
//		return err
//	}
//	if err := client.Login(ctx, account.Email, account.Password); err != nil {
//		return err
//	}
//	defer client.Close()
//
//	resp, err := client.Query(ctx, prompt, chat.QueryOptions{WebSearch: true})
//
// HTTP failures are returned as *errors.Error values so callers can decide
// whether to retry.
package chat
