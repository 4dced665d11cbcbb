// Package common contains shared constants and sentinel errors used across
// linkkeeper components.
package common

// AuthorizationHeaderName is the HTTP header carrying the session token,
// either raw or in the "Bearer <token>" form.
const AuthorizationHeaderName = "Authorization"

// BearerScheme is the authentication scheme accepted in the Authorization header.
const BearerScheme = "Bearer"

// DefaultPlatforms are the third-party platforms reported on a profile when
// no other list is configured.
var DefaultPlatforms = []string{"instagram", "tiktok", "youtube"}
