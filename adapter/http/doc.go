// Package httpadapter routes HTTP requests to API nodes through the
// meridian router.
//
// Node addresses are base URLs such as "https://10.0.0.1:8082". The
// request path is appended to the address of the node chosen for each
// attempt.
//
// # Usage
//
//	d := httpadapter.New(&http.Client{},
//	    httpadapter.WithAttemptTimeout(2*time.Second),
//	    httpadapter.WithHeader("Authorization", "Bearer "+token),
//	)
//
//	resp, err := meridian.Send[*httpadapter.Request, *httpadapter.Response](ctx, router, d, &httpadapter.Request{
//	    Method: http.MethodGet,
//	    Path:   "/v1/items/42",
//	})
//
// # Error Classification
//
//   - Transport errors and attempt timeouts: retryable
//   - 5xx, 408 Request Timeout, 429 Too Many Requests: retryable
//   - Other 4xx: non-retryable *StatusError
package httpadapter
