// Package ratelimit paces requests to the hosted chat service.
//
// The chat service throttles aggressive clients, so every generation call
// waits on a Limiter first. TokenBucket hands out a fixed number of tokens
// per refill period; NewPerMinute builds one from the configured
// requests-per-minute value, returning Unlimited when the value is zero.
package ratelimit
