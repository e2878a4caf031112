package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/Combine-Capital/cqtrace/pkg/errors"
	"resty.dev/v3"
)

// Response is a finished response whose body has been drained.
type Response struct {
	status int
	header http.Header
	body   []byte
	err    error
}

// newResponse drains resp and classifies the outcome. When the peer
// answered, the Response is returned even alongside an error status.
func newResponse(resp *resty.Response, err error) (*Response, error) {
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, errors.Wrap(err, "request canceled or timed out")
		}
		return nil, errors.NewTemporary("request failed", err)
	}

	out := &Response{status: resp.StatusCode(), header: resp.Header()}
	if resp.Body != nil {
		if out.body, err = io.ReadAll(resp.Body); err != nil {
			return nil, errors.NewTemporary("failed to read response body", err)
		}
	}
	out.err = statusError(out.status, out.body)
	return out, out.err
}

func (r *Response) StatusCode() int          { return r.status }
func (r *Response) Header(key string) string { return r.header.Get(key) }
func (r *Response) Headers() http.Header     { return r.header }
func (r *Response) Body() []byte             { return r.body }
func (r *Response) Error() error             { return r.err }
func (r *Response) IsSuccess() bool          { return r.status >= 200 && r.status < 300 }

// BodyAsJSON decodes the body into dest. It returns the status error for
// unsuccessful responses.
func (r *Response) BodyAsJSON(dest interface{}) error {
	switch {
	case r.err != nil:
		return r.err
	case len(r.body) == 0:
		return errors.NewInvalidInput("body", "empty response body")
	}
	if err := json.Unmarshal(r.body, dest); err != nil {
		return errors.Wrap(err, "failed to unmarshal JSON response")
	}
	return nil
}

// maxBodyInError bounds how much of an error body is quoted in the message.
const maxBodyInError = 200

// statusError classifies 4xx and 5xx responses. Server errors and 429 are
// temporary so the retry layer can act on them.
func statusError(status int, body []byte) error {
	if status < 400 {
		return nil
	}

	msg := fmt.Sprintf("HTTP %d: %s", status, http.StatusText(status))
	if n := len(body); n > 0 && n < maxBodyInError {
		msg += " - " + string(body)
	}

	switch {
	case status == http.StatusBadRequest:
		return errors.NewInvalidInput("request", msg)
	case status == http.StatusUnauthorized:
		return errors.NewUnauthorized(msg)
	case status == http.StatusForbidden:
		return errors.NewForbiddenWithCause("request", errors.New(msg))
	case status == http.StatusNotFound:
		return errors.NewNotFound("resource", msg)
	case status == http.StatusTooManyRequests, status >= 500:
		return errors.NewTemporary(msg, nil)
	default:
		return errors.NewPermanent(msg, nil)
	}
}
