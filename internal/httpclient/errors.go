package httpclient

import (
	"errors"
	"fmt"
)

// UpstreamError represents a non-2xx answer from an upstream service. The
// body is kept so it can be forwarded to the client verbatim.
type UpstreamError struct {
	StatusCode  int
	Body        []byte
	ContentType string
	URL         string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream error: status %d from %s", e.StatusCode, e.URL)
}

// AsUpstream unwraps err into an *UpstreamError when it carries one.
func AsUpstream(err error) (*UpstreamError, bool) {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}
