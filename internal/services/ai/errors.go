package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/openai/openai-go/v3"
	"google.golang.org/genai"
)

// Failure reasons reported through Result.FailureReason.
const (
	ReasonMissingAPIKey        = "missing_api_key"
	ReasonMissingEndpoint      = "missing_endpoint"
	ReasonUnsupportedModelKind = "unsupported_model_kind"
	ReasonRequestFailed        = "request_failed"
	ReasonBadStatus            = "bad_status"
	ReasonMalformedResponse    = "malformed_response"
	ReasonEmptyResponse        = "empty_response"
	ReasonNoQACapability       = "no_qa_capability"
	ReasonNoContext            = "no_context"
)

// Dispatch stages, in order.
const (
	StageSelectKey    = "select_key"
	StageBuildRequest = "build_request"
	StageCall         = "call"
	StageParse        = "parse"
)

// StageError records where and why a dispatch failed.
type StageError struct {
	Stage  string
	Reason string
	Err    error
}

func (e *StageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Stage, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Reason, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageErr(stage, reason string, err error) *StageError {
	return &StageError{Stage: stage, Reason: reason, Err: err}
}

// callErr classifies a transport or SDK failure. HTTP status errors map to
// bad_status; everything else, timeouts included, is request_failed.
func callErr(err error) *StageError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return stageErr(StageCall, ReasonBadStatus, err)
	}
	var oaiErr *openai.Error
	if errors.As(err, &oaiErr) {
		return stageErr(StageCall, ReasonBadStatus, &APIError{
			StatusCode: oaiErr.StatusCode,
			Type:       oaiErr.Type,
			Code:       oaiErr.Code,
			Message:    oaiErr.Message,
		})
	}
	var genaiErr genai.APIError
	if errors.As(err, &genaiErr) {
		return stageErr(StageCall, ReasonBadStatus, &APIError{
			StatusCode: genaiErr.Code,
			Type:       genaiErr.Status,
			Message:    genaiErr.Message,
		})
	}
	return stageErr(StageCall, ReasonRequestFailed, err)
}

// APIError is a non-2xx answer from a model provider.
type APIError struct {
	StatusCode int
	Type       string
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d, type %s): %s", e.StatusCode, e.Type, e.Message)
}

// IsRateLimitError reports whether err is a provider rate-limit answer.
func IsRateLimitError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests && apiErr.Code != "insufficient_quota"
	}
	return false
}

// IsAuthError reports whether the provider rejected the credentials.
func IsAuthError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden
	}
	return false
}

// IsQuotaError reports whether the account's quota is exhausted.
func IsQuotaError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == "insufficient_quota"
	}
	return false
}

const maxErrorBody = 4096

// apiErrorFromResponse reads a failed response body into an APIError. It
// understands the {"error": {"type", "message", "code"}} shape used by
// most providers and keeps the raw body otherwise.
func apiErrorFromResponse(resp *http.Response) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode, Type: "http_error"}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		apiErr.Message = http.StatusText(resp.StatusCode)
		return apiErr
	}

	var envelope struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
			Code    string `json:"code"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &envelope) == nil && envelope.Error.Message != "" {
		apiErr.Message = envelope.Error.Message
		if envelope.Error.Type != "" {
			apiErr.Type = envelope.Error.Type
		}
		apiErr.Code = envelope.Error.Code
		return apiErr
	}

	apiErr.Message = strings.TrimSpace(string(body))
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
