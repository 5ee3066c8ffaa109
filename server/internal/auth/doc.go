// Package auth provides authentication middleware for bizpulse-server.
//
// APIKeyMiddleware(mode, header, key, open...) wraps an http.Handler and
// validates the API key from the named request header. The analyst sends the
// same header when shipping snapshots.
//
// When mode != "apikey" or key == "", all requests pass through (useful for
// local development with auth disabled). When the key is incorrect or absent,
// the middleware answers 401 immediately.
package auth
