// Package errors classifies failures from the m.weibo.cn API and from
// media downloads off the sinaimg/miaopai CDNs, so callers can decide
// between an in-flight retry and recording the post in the retry ledger.
package errors

import "fmt"

// ErrorType names a failure class. Auth covers expired or rejected
// cookies, Parsing covers unexpected JSON shapes from getIndex and
// statuses/show, NotFound covers deleted or restricted posts.
type ErrorType string

const (
	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeRateLimit   ErrorType = "rate_limit"
	ErrorTypeAuth        ErrorType = "auth"
	ErrorTypeParsing     ErrorType = "parsing"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeServerError ErrorType = "server_error"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// Error is a classified API or download failure. Code holds the HTTP
// status when one was received, 0 for transport-level failures.
type Error struct {
	Type    ErrorType
	Message string
	Code    int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
}

// IsRetryable reports whether a failure class is worth another attempt
// within the same request. Auth and parsing failures will not change on
// a retry, and a vanished post stays vanished.
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServerError:
		return true
	default:
		return false
	}
}

// IsRetryableStatusCode classifies a raw HTTP status the way IsRetryable
// classifies typed failures. Code 0 means the request never completed.
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0, 429:
		return true
	case 401, 403, 404:
		return false
	default:
		return statusCode >= 500
	}
}
