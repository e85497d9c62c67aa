package models

import (
	"errors"

	"github.com/openai/openai-go/v3"
	"google.golang.org/genai"
)

// StatusCode extracts the HTTP status a provider reported for err, or 0 when err carries none.
func StatusCode(err error) int {
	if err == nil {
		return 0
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code
	}
	var oaiErr *openai.Error
	if errors.As(err, &oaiErr) && oaiErr != nil {
		return oaiErr.StatusCode
	}
	return 0
}
