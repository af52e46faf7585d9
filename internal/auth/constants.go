package auth

import "time"

const (
	ContextKeyOperator = "operator"
	ContextKeyToken    = "aps_token"

	headerAuthorization = "Authorization"

	bearerScheme    = "bearer"
	authHeaderParts = 2

	DefaultIdentityTTL = 5 * time.Minute
	redisOpTimeout     = 500 * time.Millisecond
)

const (
	msgMissingAuthorization  = "missing authorization token"
	msgInvalidOrExpiredToken = "invalid or expired token"
	msgTokenExpired          = "access token has expired"
	msgIdentityMismatch      = "token does not belong to the profile it resolves to"
	msgProfileUnavailable    = "could not verify operator identity"
	msgOperatorNotInContext  = "operator not authenticated"
	msgInvalidOperatorCtx    = "invalid operator in context"
	msgTokenNotInContext     = "access token not in context"
	msgTokenParseFailed      = "failed to parse token: %w"
	errProfileFmt            = "%s: %w"
)
