package providers

import (
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Provider error bodies get quoted into error text; keep the excerpt short.
const errBodyLimit = 4096

// statusError converts a non-2xx provider response into an error carrying a
// single-line body excerpt.
func statusError(resp *http.Response) error {
	if resp == nil {
		return fmt.Errorf("model: empty http response")
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, errBodyLimit))
	body := strings.Join(strings.Fields(string(raw)), " ")
	if body == "" {
		return fmt.Errorf("model: http status %d", resp.StatusCode)
	}
	return fmt.Errorf("model: http status %d body=%s", resp.StatusCode, body)
}
