// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// Two code families live here. The generic lowercase codes mirror common HTTP
// status semantics and cover transport-level failures. The uppercase AI codes
// are part of the chat API contract: upstream provider failures are normalized
// to them (see internal/provider) and passed to clients verbatim, so a web or
// mobile frontend can branch on the code without parsing provider-specific
// messages.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "GUEST_LOGIN_REQUIRED",
//	  "message": "guest message limit reached, please sign in to continue"
//	}
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeForbidden        = "forbidden"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodePayloadTooLarge  = "payload_too_large"

	// Account state:
	ErrCodeAccountLocked = "account_locked"

	// Chat API contract (uppercase, stable across providers):
	ErrCodeGuestLoginRequired = "GUEST_LOGIN_REQUIRED"
)
