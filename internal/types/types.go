// Package types defines core data types and error codes shared across bookpress.
package types

import "errors"

// Config is the persisted application configuration.
type Config struct {
	StylesDir       string   `json:"styles_dir"`
	FontsDir        string   `json:"fonts_dir"`
	OutputDir       string   `json:"output_dir"`
	DefaultStyle    string   `json:"default_style"`
	DefaultFormats  []string `json:"default_formats"`
	MaxPagesPerPart int      `json:"max_pages_per_part"` // used when splitting is requested without an explicit budget
	Concurrency     int      `json:"concurrency"`        // parallel render jobs, 1 renders sequentially
	LogLevel        string   `json:"log_level"`

	// LLM writer
	LLMProvider       string `json:"llm_provider"` // openai, gemini or anthropic
	OpenAIAPIKey      string `json:"openai_api_key"`
	OpenAIBaseURL     string `json:"openai_base_url"`
	OpenAIModel       string `json:"openai_model"`
	GeminiAPIKey      string `json:"gemini_api_key"`
	GeminiModel       string `json:"gemini_model"`
	AnthropicAPIKey   string `json:"anthropic_api_key"`
	AnthropicModel    string `json:"anthropic_model"`
	RequestsPerMinute int    `json:"requests_per_minute"`
}

// ErrorCode 错误代码枚举
type ErrorCode string

const (
	ErrConfigNotFound ErrorCode = "CONFIG_NOT_FOUND"
	ErrConfigParse    ErrorCode = "CONFIG_PARSE_ERROR"
	ErrInvalidBudget  ErrorCode = "INVALID_BUDGET"
	ErrInvalidFormat  ErrorCode = "INVALID_FORMAT"
	ErrRenderJob      ErrorCode = "RENDER_JOB_ERROR"
	ErrFileNotFound   ErrorCode = "FILE_NOT_FOUND"
	ErrInvalidInput   ErrorCode = "INVALID_INPUT"
	ErrAPICall        ErrorCode = "API_CALL_ERROR"
	ErrConfig         ErrorCode = "CONFIG_ERROR"
	ErrInternal       ErrorCode = "INTERNAL_ERROR"
)

// AppError 应用错误
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
	Cause   error     `json:"-"`
}

// Error implements the error interface for AppError
func (e *AppError) Error() string {
	msg := e.Message
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause of the error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewAppError creates a new AppError with the given code, message, and optional cause
func NewAppError(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewAppErrorWithDetails creates a new AppError with details
func NewAppErrorWithDetails(code ErrorCode, message, details string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Details: details,
		Cause:   cause,
	}
}

// IsCode reports whether any AppError in err's chain carries code.
func IsCode(err error, code ErrorCode) bool {
	var appErr *AppError
	for err != nil {
		if !errors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Cause
	}
	return false
}

// CodeOf returns the code of the outermost AppError in err's chain, or ErrInternal.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}
