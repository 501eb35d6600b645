package transport

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/agentstation/procreport/pkg/errors"
	"github.com/agentstation/procreport/pkg/logging"
)

// maxErrorMessage bounds how much of an error body ends up in APIError.
const maxErrorMessage = 512

// readBody drains and closes the response, enforcing the size limit and
// the 2xx status requirement.
func readBody(resp *http.Response, url string, limit int64) ([]byte, error) {
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logging.Warn().Err(err).Str("url", url).Msg("Failed to close response body")
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, errors.NewTransportError(url, errors.WrapIO("read", "response body", err))
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, errors.NewAPIError(url, resp.StatusCode, truncate(strings.TrimSpace(string(body)), maxErrorMessage))
	}

	if int64(len(body)) > limit {
		return nil, errors.NewTransportError(url, fmt.Errorf("response exceeds %d bytes", limit))
	}

	return body, nil
}

// DecodeJSON decodes a JSON document into target.
func DecodeJSON(body []byte, source string, target any) error {
	if err := json.Unmarshal(body, target); err != nil {
		return errors.WrapParse("json", source, err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
