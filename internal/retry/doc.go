// Package retry wraps single-shot transport calls with bounded retries.
//
// The policy is deliberately flat: a fixed number of attempts, a fixed
// delay between them, and a per-attempt timeout. A Fatal transport outcome
// stops immediately; running out of attempts produces *ExhaustedError,
// which is distinguishable from the fatal short-circuit with errors.Is.
//
// Usage:
//
//	exec := retry.New()
//	err := exec.Do(ctx, retry.Policy{Attempts: 20, Delay: 500 * time.Millisecond, Timeout: 10 * time.Second},
//	    req.Op(), func(ctx context.Context) error {
//	        resp, err = httpTransport.Do(ctx, req)
//	        return err
//	    })
package retry
