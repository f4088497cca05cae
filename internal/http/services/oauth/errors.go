// Package oauth contains the services behind the /oauth endpoints.
package oauth

import "errors"

// The protocol error set is closed: services return one of these sentinels
// and controllers map them to the wire. Anything else is server_error.
var (
	ErrInvalidRequest       = errors.New("invalid_request")
	ErrInvalidClient        = errors.New("invalid_client")
	ErrInvalidGrant         = errors.New("invalid_grant")
	ErrUnauthorizedClient   = errors.New("unauthorized_client")
	ErrAccessDenied         = errors.New("access_denied")
	ErrUnsupportedGrantType = errors.New("unsupported_grant_type")
	ErrUnsupportedResponse  = errors.New("unsupported_response_type")
	ErrInvalidScope         = errors.New("invalid_scope")
	ErrServerError          = errors.New("server_error")

	// device flow poll states (RFC 8628 §3.5)
	ErrAuthorizationPending = errors.New("authorization_pending")
	ErrSlowDown             = errors.New("slow_down")
	ErrExpiredToken         = errors.New("expired_token")

	// DPoP (RFC 9449 §5)
	ErrInvalidDPoPProof = errors.New("invalid_dpop_proof")
)
