// Package httpclient is the HTTP transport every endpoint call goes through.
// It issues JSON, text and NDJSON requests, maps failures to a closed set of
// typed errors and retries rate-limited or transiently failed calls.
//
// Transport
//   - Built with NewBuilder(log)...Build(); performs exactly one attempt per call.
//   - Relative requests resolve against the base URL and carry the access token
//     when one is configured. Absolute requests only carry it after WithAuth.
//   - WithAuth without a configured token fails locally with AuthenticationError.
//   - The timeout covers the whole exchange for Send and SendText, and only the
//     wait for response headers for Open and streams.
//   - The caller's context cancellation is returned as ctx.Err().
//
// Errors
//   - 401 AuthenticationError, 403 AuthorizationError (with missing scope),
//     404 NotFoundError, 429 RateLimitError (with Retry-After), other non-2xx
//     GenericError, no response TransientError.
//   - DecodeError, ValidationError and InterceptorError sit outside the status mapping.
//
// Retries
//   - NewRetrier(transport, policy, log) wraps a Transport behind the same interface.
//   - 429 responses are retried for every request, waiting Retry-After in full or
//     RateLimitDefaultDelay when it is absent.
//   - Transient failures are retried only for retryable requests (GET by default,
//     others via WithRetry) with min(base*2^n, max) plus up to Jitter of that delay.
//   - Everything else is returned unchanged.
//
// Streams
//   - StreamNDJSON opens the connection on the first Next and skips blank
//     keep-alive lines. Stopping early or canceling closes the connection.
package httpclient
