// Package auth protects the HTTP transports with bearer tokens.
//
// Tokens are HS256-signed JWTs whose "sub" claim names the caller. The
// secret comes from auth.jwt_secret (or AUTH_SECRET) and must be at least
// MinSecretLength bytes. When no secret is configured the transports are
// open, which is the usual setup behind a tailnet or on localhost.
//
// # Middleware
//
//	verifier, err := auth.NewJWTVerifier(secret)
//	r.Use(auth.BearerMiddleware(verifier, logger))
//
// Requests without a valid token are rejected with 401 and a small JSON
// body. Accepted requests carry the caller in their context:
//
//	principal := auth.PrincipalFrom(r.Context())
//
// # Issuing tokens
//
// Generate signs a token for a subject with an expiry. The CLI exposes it
// as the "token" subcommand so operators can hand out credentials without
// extra tooling.
package auth
