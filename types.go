package identity

import "fmt"

// Logger is the logging contract used across the package.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Config holds identity options
type Config interface {
	GetAccessSigningKey() string
	GetRefreshSigningKey() string
	// GetAccessTokenExpiration returns the access token TTL in hours.
	GetAccessTokenExpiration() int
	// GetRefreshTokenExpiration returns the refresh token TTL in hours.
	GetRefreshTokenExpiration() int
	GetIssuer() string
	GetAudience() []string
	GetContextKey() string
	GetTokenLookup() string
	GetAuthScheme() string
	// GetClientURL is the frontend base URL OAuth callbacks redirect to.
	GetClientURL() string
}

// SimpleConfig is a literal Config implementation.
type SimpleConfig struct {
	AccessSigningKey       string
	RefreshSigningKey      string
	AccessTokenExpiration  int
	RefreshTokenExpiration int
	Issuer                 string
	Audience               []string
	ContextKey             string
	TokenLookup            string
	AuthScheme             string
	ClientURL              string
}

func (c SimpleConfig) GetAccessSigningKey() string  { return c.AccessSigningKey }
func (c SimpleConfig) GetRefreshSigningKey() string { return c.RefreshSigningKey }

func (c SimpleConfig) GetAccessTokenExpiration() int {
	if c.AccessTokenExpiration > 0 {
		return c.AccessTokenExpiration
	}
	return DefaultAccessTokenExpiration
}

func (c SimpleConfig) GetRefreshTokenExpiration() int {
	if c.RefreshTokenExpiration > 0 {
		return c.RefreshTokenExpiration
	}
	return DefaultRefreshTokenExpiration
}

func (c SimpleConfig) GetIssuer() string     { return c.Issuer }
func (c SimpleConfig) GetAudience() []string { return c.Audience }

func (c SimpleConfig) GetContextKey() string {
	if c.ContextKey == "" {
		return "user"
	}
	return c.ContextKey
}

func (c SimpleConfig) GetTokenLookup() string {
	if c.TokenLookup == "" {
		return defaultTokenLookup
	}
	return c.TokenLookup
}

func (c SimpleConfig) GetAuthScheme() string {
	if c.AuthScheme == "" {
		return "Bearer"
	}
	return c.AuthScheme
}

func (c SimpleConfig) GetClientURL() string { return c.ClientURL }

const (
	// DefaultAccessTokenExpiration is 7 days, in hours.
	DefaultAccessTokenExpiration = 7 * 24
	// DefaultRefreshTokenExpiration is 30 days, in hours.
	DefaultRefreshTokenExpiration = 30 * 24
)

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] IDENTITY "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] IDENTITY "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] IDENTITY "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] IDENTITY "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
