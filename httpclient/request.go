package httpclient

import (
	"encoding/json"
	nethttp "net/http"
	"net/url"
	"strings"
)

// QueryParam is one query string entry. Order is preserved on the wire.
type QueryParam struct {
	Key   string
	Value string
}

// Body is an encodable request payload.
type Body interface {
	encode() (payload []byte, contentType string, err error)
}

type jsonBody struct{ v any }

func (b jsonBody) encode() ([]byte, string, error) {
	data, err := json.Marshal(b.v)
	return data, MediaTypeJSON, err
}

type formBody struct{ values url.Values }

func (b formBody) encode() ([]byte, string, error) {
	return []byte(b.values.Encode()), MediaTypeForm, nil
}

type textBody struct{ text string }

func (b textBody) encode() ([]byte, string, error) {
	return []byte(b.text), MediaTypeText, nil
}

// JSONBody encodes v as a JSON document.
func JSONBody(v any) Body { return jsonBody{v: v} }

// FormBody encodes fields as application/x-www-form-urlencoded.
func FormBody(fields map[string]string) Body {
	values := make(url.Values, len(fields))
	for k, v := range fields {
		values.Set(k, v)
	}
	return formBody{values: values}
}

// TextBody sends text as text/plain.
func TextBody(text string) Body { return textBody{text: text} }

// Request describes one logical call. With* methods return modified copies,
// so a Request can be shared and reused safely.
type Request struct {
	method      string
	target      string
	absolute    bool
	query       []QueryParam
	body        Body
	accept      string
	headers     map[string]string
	requireAuth bool
	retryable   bool
}

// NewRequest creates a request for a path relative to the configured base URL.
// GET and HEAD requests are retryable by default.
func NewRequest(method, path string) *Request {
	return &Request{
		method:    method,
		target:    path,
		retryable: method == nethttp.MethodGet || method == nethttp.MethodHead,
	}
}

// NewAbsoluteRequest creates a request for an absolute URL on any host.
// The access token is only attached after WithAuth.
func NewAbsoluteRequest(method, rawURL string) *Request {
	r := NewRequest(method, rawURL)
	r.absolute = true
	return r
}

// Get creates a relative GET request
func Get(path string) *Request { return NewRequest(nethttp.MethodGet, path) }

// Post creates a relative POST request
func Post(path string) *Request { return NewRequest(nethttp.MethodPost, path) }

// Put creates a relative PUT request
func Put(path string) *Request { return NewRequest(nethttp.MethodPut, path) }

// Delete creates a relative DELETE request
func Delete(path string) *Request { return NewRequest(nethttp.MethodDelete, path) }

func (r *Request) clone() *Request {
	c := *r
	c.query = append([]QueryParam(nil), r.query...)
	if r.headers != nil {
		c.headers = make(map[string]string, len(r.headers))
		for k, v := range r.headers {
			c.headers[k] = v
		}
	}
	return &c
}

// WithQuery appends a query parameter.
func (r *Request) WithQuery(key, value string) *Request {
	c := r.clone()
	c.query = append(c.query, QueryParam{Key: key, Value: value})
	return c
}

// WithOptionalQuery appends a query parameter unless value is empty.
func (r *Request) WithOptionalQuery(key, value string) *Request {
	if value == "" {
		return r
	}
	return r.WithQuery(key, value)
}

// WithQueryParams appends several query parameters in order.
func (r *Request) WithQueryParams(params ...QueryParam) *Request {
	c := r.clone()
	c.query = append(c.query, params...)
	return c
}

// WithBody sets the request payload.
func (r *Request) WithBody(body Body) *Request {
	c := r.clone()
	c.body = body
	return c
}

// WithAccept overrides the Accept header.
func (r *Request) WithAccept(mediaType string) *Request {
	c := r.clone()
	c.accept = mediaType
	return c
}

// WithHeader sets an extra header for this request only.
func (r *Request) WithHeader(key, value string) *Request {
	c := r.clone()
	if c.headers == nil {
		c.headers = make(map[string]string, 1)
	}
	c.headers[key] = value
	return c
}

// WithAuth marks the request as requiring the access token. Without a
// configured token the call fails locally with an AuthenticationError.
func (r *Request) WithAuth() *Request {
	c := r.clone()
	c.requireAuth = true
	return c
}

// WithRetry allows the Retrier to retry transient failures of this request.
// Use it only for requests that are safe to repeat.
func (r *Request) WithRetry() *Request {
	c := r.clone()
	c.retryable = true
	return c
}

// WithoutRetry disables transient retries for this request.
func (r *Request) WithoutRetry() *Request {
	c := r.clone()
	c.retryable = false
	return c
}

// Method returns the HTTP method.
func (r *Request) Method() string { return r.method }

// Target returns the path or absolute URL the request was built with.
func (r *Request) Target() string { return r.target }

// IsAbsolute reports whether Target is a full URL that bypasses the base URL.
func (r *Request) IsAbsolute() bool { return r.absolute }

// Query returns a copy of the query parameters in insertion order.
func (r *Request) Query() []QueryParam { return append([]QueryParam(nil), r.query...) }

// Accept returns the Accept header value sent with the request.
func (r *Request) Accept() string { return r.accept }

// RequiresAuth reports whether the request fails without a configured token.
func (r *Request) RequiresAuth() bool { return r.requireAuth }

// Retryable reports whether the retrier may repeat the request.
func (r *Request) Retryable() bool { return r.retryable }

// HasBody reports whether a request body is attached.
func (r *Request) HasBody() bool { return r.body != nil }

// validate checks the descriptor before any I/O.
func (r *Request) validate() error {
	if r == nil {
		return &ValidationError{Field: "request", Message: "request cannot be nil"}
	}
	if strings.TrimSpace(r.method) == "" {
		return &ValidationError{Field: "method", Message: "method cannot be empty"}
	}
	if r.target == "" {
		return &ValidationError{Field: "url", Message: "URL cannot be empty"}
	}
	if r.absolute {
		u, err := url.Parse(r.target)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return &ValidationError{Field: "url", Message: "absolute URL must be http(s) with a host"}
		}
		return nil
	}
	if !strings.HasPrefix(r.target, "/") {
		return &ValidationError{Field: "url", Message: "path must start with /"}
	}
	return nil
}

// encodeBody returns the payload bytes so every attempt can resend them.
func (r *Request) encodeBody() ([]byte, string, error) {
	if r.body == nil {
		return nil, "", nil
	}
	payload, contentType, err := r.body.encode()
	if err != nil {
		return nil, "", &ValidationError{Field: "body", Message: "failed to encode body: " + err.Error()}
	}
	return payload, contentType, nil
}

// resolve builds the final URL. Query parameters keep their order and are
// appended to any query already present in the target.
func (r *Request) resolve(baseURL string) string {
	var sb strings.Builder
	if r.absolute {
		sb.WriteString(r.target)
	} else {
		sb.WriteString(strings.TrimRight(baseURL, "/"))
		sb.WriteString(r.target)
	}
	if len(r.query) == 0 {
		return sb.String()
	}

	sep := byte('?')
	if strings.Contains(r.target, "?") {
		sep = '&'
	}
	for _, p := range r.query {
		sb.WriteByte(sep)
		sb.WriteString(url.QueryEscape(p.Key))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(p.Value))
		sep = '&'
	}
	return sb.String()
}
