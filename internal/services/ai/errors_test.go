package ai

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
)

func TestErrorClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		err       error
		rateLimit bool
		auth      bool
		quota     bool
	}{
		{name: "nil", err: nil},
		{name: "plain error", err: errors.New("429 too many requests")},
		{name: "rate limited", err: &APIError{StatusCode: http.StatusTooManyRequests}, rateLimit: true},
		{name: "quota", err: &APIError{StatusCode: http.StatusTooManyRequests, Code: "insufficient_quota"}, quota: true},
		{name: "unauthorized wrapped", err: fmt.Errorf("call: %w", &APIError{StatusCode: http.StatusUnauthorized}), auth: true},
		{name: "forbidden in stage error", err: stageErr(StageCall, ReasonBadStatus, &APIError{StatusCode: http.StatusForbidden}), auth: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := IsRateLimitError(tt.err); got != tt.rateLimit {
				t.Errorf("IsRateLimitError = %v, want %v", got, tt.rateLimit)
			}
			if got := IsAuthError(tt.err); got != tt.auth {
				t.Errorf("IsAuthError = %v, want %v", got, tt.auth)
			}
			if got := IsQuotaError(tt.err); got != tt.quota {
				t.Errorf("IsQuotaError = %v, want %v", got, tt.quota)
			}
		})
	}
}

func TestAPIErrorFromResponse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		status   int
		body     string
		wantType string
		wantMsg  string
		wantCode string
	}{
		{
			name:     "provider envelope",
			status:   http.StatusTooManyRequests,
			body:     `{"error":{"type":"rate_limit_error","message":"slow down","code":"rate_limit"}}`,
			wantType: "rate_limit_error",
			wantMsg:  "slow down",
			wantCode: "rate_limit",
		},
		{name: "plain body", status: http.StatusBadGateway, body: " upstream down \n", wantType: "http_error", wantMsg: "upstream down"},
		{name: "empty body", status: http.StatusServiceUnavailable, body: "", wantType: "http_error", wantMsg: "Service Unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			resp := &http.Response{StatusCode: tt.status, Body: io.NopCloser(strings.NewReader(tt.body))}
			got := apiErrorFromResponse(resp)
			if got.StatusCode != tt.status || got.Type != tt.wantType || got.Message != tt.wantMsg || got.Code != tt.wantCode {
				t.Errorf("apiErrorFromResponse = %+v", got)
			}
		})
	}
}

func TestCallErrClassifiesStatusErrors(t *testing.T) {
	t.Parallel()

	if got := callErr(&APIError{StatusCode: 500}); got.Reason != ReasonBadStatus || got.Stage != StageCall {
		t.Errorf("status error classified as %+v", got)
	}
	if got := callErr(errors.New("dial tcp: refused")); got.Reason != ReasonRequestFailed {
		t.Errorf("transport error classified as %+v", got)
	}
}

func TestMaskAPIKeyAndTruncate(t *testing.T) {
	t.Parallel()

	masks := map[string]string{
		"":                 "",
		"short":            RedactedValue,
		"sk-1234567890abc": "sk-1" + RedactedValue + "0abc",
	}
	for in, want := range masks {
		if got := MaskAPIKey(in); got != want {
			t.Errorf("MaskAPIKey(%q) = %q, want %q", in, got, want)
		}
	}

	if got := TruncateString("héllo wörld", 5); got != "héllo..." {
		t.Errorf("TruncateString = %q", got)
	}
	if got := SanitizePrompt("a\x00b\x1bc", false); got != "abc" {
		t.Errorf("SanitizePrompt = %q", got)
	}
}
