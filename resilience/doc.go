// Package resilience wraps calls to external collaborators with retry and
// rate limiting.
//
//	lim := resilience.NewLimiter(resilience.LimiterConfig{RequestsPerSecond: 5, Burst: 1})
//	text, err := resilience.Retry(ctx, resilience.DefaultRetryConfig(), func() (string, error) {
//		if err := lim.Wait(ctx); err != nil {
//			return "", err
//		}
//		return client.Complete(ctx, req)
//	})
//
// Retry only repeats errors that are retryable: AppErrors report this through
// their Retryable flag, context errors never retry, and other errors do.
package resilience
