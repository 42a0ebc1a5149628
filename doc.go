// Package identity resolves user identities across independent sources and
// manages the bearer-credential lifecycle built on top of them.
//
// Identity resolution:
//   - Resolver accepts assertions from three sources (local email/password,
//     Google OAuth, GitHub OAuth) and finds, links, or creates the owning
//     account. OAuth resolution applies a fixed precedence: provider-ID match,
//     then email match (which links the provider to the existing account
//     without changing its auth method), then account creation.
//   - UsernameAllocator derives collision-free handles from emails or display
//     names by probing the Users store for the first available suffix.
//
// Token lifecycle:
//   - TokenService issues and verifies signed, stateless access and refresh
//     tokens with distinct signing keys per kind. Rotate trades a valid
//     refresh token for a fresh pair after confirming the account still
//     exists. There is no revocation store; expiry is the only built-in
//     invalidation.
//
// Request enforcement:
//   - Gateway provides router middleware for required and optional bearer
//     authentication plus resource-ownership checks, attaching the resolved
//     account to the request context for downstream handlers.
package identity
