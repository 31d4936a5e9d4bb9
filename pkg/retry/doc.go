// Package retry repeats failed operations with backoff.
//
// Each attempt can be gated by Config.BeforeAttempt, which the paginator
// uses so that a retry is admitted only when both the per-pass request cap
// and the monthly quota still allow another request:
//
//	page, err := retry.DoWithResult(ctx, &retry.Config{
//		MaxAttempts:   3,
//		Backoff:       retry.DefaultExponentialBackoff(),
//		BeforeAttempt: admit,
//	}, func(ctx context.Context, attempt int) (*twitter.Page, error) {
//		return fetcher.FetchPage(ctx, req)
//	})
//
// Rate-limit responses back off longer than transport and server errors;
// auth, not-found and malformed responses are not retried.
package retry
