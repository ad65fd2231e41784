package httpclient

import (
	"context"
	nethttp "net/http"
)

// SendJSON sends req and decodes the JSON response as T.
func SendJSON[T any](ctx context.Context, t Transport, req *Request) (T, error) {
	var out T
	if err := t.Send(ctx, req, &out); err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// SendAbsolute issues a GET to an absolute URL on another origin and decodes
// the JSON response as T. No access token is attached.
func SendAbsolute[T any](ctx context.Context, t Transport, rawURL string, query ...QueryParam) (T, error) {
	return SendJSON[T](ctx, t, NewAbsoluteRequest(nethttp.MethodGet, rawURL).WithQueryParams(query...))
}

// LastNDJSON consumes the NDJSON stream of req to its end and returns the
// final item. The boolean is false when the stream carried no items.
func LastNDJSON[T any](ctx context.Context, t Transport, req *Request) (T, bool, error) {
	stream := StreamNDJSON[T](ctx, t, req)
	defer stream.Close()

	var (
		last  T
		found bool
	)
	for stream.Next() {
		last = stream.Item()
		found = true
	}
	if err := stream.Err(); err != nil {
		var zero T
		return zero, false, err
	}
	return last, found, nil
}

// DecodeNDJSON collects every item of the NDJSON stream of req. Use it only
// for finite streams.
func DecodeNDJSON[T any](ctx context.Context, t Transport, req *Request) ([]T, error) {
	stream := StreamNDJSON[T](ctx, t, req)
	defer stream.Close()

	var items []T
	for stream.Next() {
		items = append(items, stream.Item())
	}
	if err := stream.Err(); err != nil {
		return items, err
	}
	return items, nil
}
