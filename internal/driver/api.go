package driver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	trellerrors "github.com/mrz1836/trellis/internal/errors"
	"github.com/mrz1836/trellis/internal/logging"
	"github.com/mrz1836/trellis/internal/wait"
)

// maxResponseBody bounds how much of a response body is kept.
const maxResponseBody = 10 << 20

type apiClient struct {
	http    *http.Client
	limiter *rate.Limiter
	header  string
}

// Request is one API call. Path is resolved against the tenant API base URL.
// Body is sent as-is when it is a []byte or string and JSON-encoded otherwise.
type Request struct {
	Method  string
	Path    string
	Body    any
	Headers map[string]string
}

// Response is a fully read API response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// JSON decodes the body into v.
func (r *Response) JSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response body: %w", err)
	}
	return nil
}

// Field extracts a value from a JSON body by dotted path, for example
// "data.items.0.id". Numbers are returned as json.Number.
func (r *Response) Field(path string) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(r.Body))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode response body: %w", err)
	}
	return Lookup(doc, path)
}

// Lookup walks a decoded JSON document by dotted path.
func Lookup(doc any, path string) (any, error) {
	if path == "" {
		return doc, nil
	}
	cur := doc
	for _, part := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[part]
			if !ok {
				return nil, fmt.Errorf("%w: field %q not found in %q", trellerrors.ErrEmptyValue, part, path)
			}
			cur = v
		case []any:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(node) {
				return nil, fmt.Errorf("%w: index %q in %q", trellerrors.ErrValueOutOfRange, part, path)
			}
			cur = node[i]
		default:
			return nil, fmt.Errorf("%w: cannot descend into %q of %q", trellerrors.ErrValueOutOfRange, part, path)
		}
	}
	return cur, nil
}

func (r *Response) snippet() string {
	const limit = 200
	if len(r.Body) > limit {
		return string(r.Body[:limit]) + "..."
	}
	return string(r.Body)
}

// Request issues req with the session credential and tenant header.
// Transport failures wrap ErrRequestFailed; any HTTP status is returned
// as a Response for the caller to judge.
func (s *Session) Request(ctx context.Context, req Request) (*Response, error) {
	if err := s.requireAPI("request"); err != nil {
		return nil, err
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	target := s.tenant.APIURL(req.Path)

	if s.api.limiter != nil {
		if err := s.api.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %s %s: %w", trellerrors.ErrRequestFailed, method, req.Path, err)
		}
	}

	body, contentType, err := encodeBody(req.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", trellerrors.ErrRequestFailed, method, req.Path, err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", trellerrors.ErrRequestFailed, method, req.Path, err)
	}
	httpReq.SetBasicAuth(s.cred.Username, s.cred.Password)
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(s.api.header, s.tenant.ID)
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := s.api.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", trellerrors.ErrRequestFailed, method, req.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s %s: %w", trellerrors.ErrRequestFailed, method, req.Path, err)
	}

	s.logger.Debug().
		Str("method", method).
		Str("url", logging.SafeValue("url", target)).
		Int("status", resp.StatusCode).
		Msg("api request")

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

func encodeBody(body any) (io.Reader, string, error) {
	switch b := body.(type) {
	case nil:
		return nil, "", nil
	case []byte:
		return bytes.NewReader(b), "application/json", nil
	case string:
		return strings.NewReader(b), "application/json", nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, "", fmt.Errorf("encode request body: %w", err)
		}
		return bytes.NewReader(data), "application/json", nil
	}
}

// RequestUntil repeats req until accept returns true for the response, using
// the driver's wait timing. It returns the accepted response. Eventual
// consistency on the API side (search indexes, async jobs) is handled this way.
func (s *Session) RequestUntil(ctx context.Context, req Request, description string, accept func(*Response) bool) (*Response, error) {
	if err := s.requireAPI("request"); err != nil {
		return nil, err
	}
	var last *Response
	cond := wait.NewCondition(description, func(ctx context.Context) (bool, error) {
		resp, err := s.Request(ctx, req)
		if err != nil {
			return false, err
		}
		last = resp
		return accept(resp), nil
	})
	if err := s.Await(ctx, cond); err != nil {
		return last, err
	}
	return last, nil
}

// StatusIs accepts responses with the given status code.
func StatusIs(code int) func(*Response) bool {
	return func(r *Response) bool { return r.StatusCode == code }
}
