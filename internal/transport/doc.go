// Package transport performs single device calls and classifies their failures.
//
// Two transports are provided:
//
//   - HTTP issues one camera request. Failures come back as *Error with an
//     Outcome of OutcomeRetryable or OutcomeFatal.
//   - Serial writes one turntable command frame behind a timeout boundary.
//     Every serial failure is OutcomeFatal.
//
// Neither transport retries. Retrying is composed on top by package retry,
// which uses OutcomeOf to decide whether another attempt is allowed.
//
// # Non-idempotent requests
//
// A request marked Idempotent=false (the shutter button) is never reported
// as Retryable once its bytes have left the process without a reply: the
// camera may already have fired. Refused connections and explicit 5xx replies
// stay Retryable because the camera provably did not act.
package transport
