// Package httputil provides the HTTP plumbing shared by image acquisition
// and the image proxy.
//
// # Overview
//
//   - [NewClient]: an *http.Client with the default timeout and an
//     instrumented transport that reports to observability hooks.
//   - [Fetch]: GET a URL into memory with a size cap, classifying failures
//     as [*StatusError] or retryable network errors.
//   - [Retry]: automatic retry with exponential backoff.
//
// # Retry
//
// [Retry] only retries errors wrapped in [RetryableError]. [Fetch] wraps
// network failures and 5xx responses that way, so
//
//	err := httputil.Retry(ctx, 3, 250*time.Millisecond, func() error {
//	    resp, err = httputil.Fetch(ctx, client, url, nil, 0)
//	    return err
//	})
//
// retries transient failures and gives up immediately on a 404.
//
// # Defaults
//
//   - Timeout: 15 seconds
//   - Max body: 32 MiB
//   - Retries: chosen by callers; the delay doubles after each attempt
package httputil
