// Package services defines the business logic for guest quotas, policy
// resolution, chat generation, authentication, and admin settings. This file
// centralizes common service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer; translation
// into user-facing messages or HTTP status codes is performed at the
// handler layer.
package services

import "errors"

// Chat-related errors.
var (
	// ErrChatNotFound indicates that the requested chat does not exist or is
	// not accessible to the current user.
	ErrChatNotFound = errors.New("chat not found")

	// ErrEmptyPrompt is returned when a generation request contains an empty
	// message.
	ErrEmptyPrompt = errors.New("message is empty")

	// ErrConversationNotFound indicates that a guest conversation id is
	// unknown (expired, evicted, or never created).
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrGuestQuotaExceeded is returned when an anonymous visitor has used
	// all free messages.
	ErrGuestQuotaExceeded = errors.New("guest message limit reached")
)

// Auth-related errors.
var (
	// ErrEmailTaken is returned on registration when the email is already
	// associated with an account.
	ErrEmailTaken = errors.New("email already registered")

	// ErrInvalidCredentials is returned when email or password do not match.
	// Deliberately indistinguishable between the two.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrAccountLocked is returned when login is attempted against an
	// account under failed-attempt lockout.
	ErrAccountLocked = errors.New("account temporarily locked")

	// ErrUserNotFound indicates the referenced account does not exist.
	ErrUserNotFound = errors.New("user not found")
)

// Admin and feature errors.
var (
	// ErrBadConfirmation is returned when the step-up confirmation on an
	// admin settings change is missing, mistyped, or the password does not
	// verify against the stored hash.
	ErrBadConfirmation = errors.New("confirmation failed")

	// ErrInvalidSettings is returned when a settings patch violates the
	// documented bounds.
	ErrInvalidSettings = errors.New("invalid settings")

	// ErrFeatureDisabled is returned when a toggled-off feature is invoked.
	ErrFeatureDisabled = errors.New("feature is disabled")

	// ErrImageTooLarge is returned when an uploaded image exceeds the size cap.
	ErrImageTooLarge = errors.New("image too large")

	// ErrUnsupportedImage is returned for uploads that are not image/* MIME.
	ErrUnsupportedImage = errors.New("unsupported image type")
)
