package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// postJSON sends payload to url and decodes a 2xx body into out. Failures
// are returned as *StageError.
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return stageErr(StageBuildRequest, ReasonRequestFailed, fmt.Errorf("failed to encode request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return stageErr(StageBuildRequest, ReasonRequestFailed, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return callErr(fmt.Errorf("failed to call model: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return callErr(apiErrorFromResponse(resp))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return stageErr(StageParse, ReasonMalformedResponse, fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}
