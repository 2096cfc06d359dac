// Package retry wraps calls to the chat service with bounded retries and
// exponential backoff.
//
// Typed errors from pkg/errors are retried according to their type: network,
// rate limit, server and empty-response failures are retried, authentication
// and parsing failures are returned immediately. Context cancellation always
// stops the loop.
//
//	text, err := retry.DoWithResult(ctx, func(ctx context.Context) (string, error) {
//		return client.Query(ctx, prompt)
//	}, &retry.Config{MaxAttempts: 3, Backoff: retry.DefaultExponentialBackoff()})
package retry
