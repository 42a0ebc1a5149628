package identity

import (
	"strings"

	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-router"
)

var defaultTokenLookup = "header:" + router.HeaderAuthorization

// Gateway enforces bearer authentication at the request boundary. Required
// mode rejects requests without a valid access token and a still-existing
// account; Optional mode runs the same pipeline but degrades every failure
// to "no identity attached". Ownership checks compose after Required mode.
type Gateway struct {
	tokens *TokenService
	store  Users
	cfg    Config
	logger Logger
}

// NewGateway builds a Gateway over the token service and store.
func NewGateway(tokens *TokenService, store Users, cfg Config) *Gateway {
	return &Gateway{
		tokens: tokens,
		store:  store,
		cfg:    cfg,
		logger: defLogger{},
	}
}

// WithLogger overrides the gateway logger.
func (g *Gateway) WithLogger(l Logger) *Gateway {
	if l != nil {
		g.logger = l
	}
	return g
}

// RequireAuth rejects the request unless it carries a valid access token for
// an account that still exists. The sanitized account is attached to router
// locals under the configured context key and to the standard context for
// downstream handlers.
func (g *Gateway) RequireAuth() router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			user, err := g.resolveRequest(ctx)
			if err != nil {
				return respondError(ctx, err)
			}

			g.attach(ctx, user)
			return hf(ctx)
		}
	}
}

// OptionalAuth resolves the request identity when present but never fails
// the request: a missing, invalid, or orphaned token simply means no
// identity is attached.
func (g *Gateway) OptionalAuth() router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			user, err := g.resolveRequest(ctx)
			if err == nil {
				g.attach(ctx, user)
			}
			return hf(ctx)
		}
	}
}

// RequireOwnership compares the named route parameter (or body field, when
// the route has none) against the authenticated account id. It must run
// after RequireAuth.
func (g *Gateway) RequireOwnership(field string) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			user, ok := UserFromRouter(ctx, g.cfg.GetContextKey())
			if !ok {
				return respondError(ctx, ErrUnauthenticated)
			}

			owner := ctx.Param(field)
			if owner == "" {
				owner = ctx.Query(field, "")
			}
			if owner == "" {
				var body map[string]any
				if err := ctx.Bind(&body); err == nil {
					if v, ok := body[field].(string); ok {
						owner = v
					}
				}
			}

			if owner == "" || owner != user.ID.String() {
				return respondError(ctx, ErrForbidden)
			}

			return hf(ctx)
		}
	}
}

// UserFromRouter reads the account a gateway middleware attached to the
// router locals. Downstream handlers use this instead of re-resolving.
func UserFromRouter(ctx router.Context, key string) (*User, bool) {
	if key == "" {
		key = "user"
	}
	raw := ctx.Locals(key)
	if raw == nil {
		return nil, false
	}
	user, ok := raw.(*User)
	return user, ok
}

func (g *Gateway) resolveRequest(ctx router.Context) (*User, error) {
	raw, err := extractRawToken(ctx, g.cfg.GetTokenLookup(), g.cfg.GetAuthScheme())
	if err != nil {
		return nil, ErrUnauthenticated
	}

	accountID, err := g.tokens.VerifyAccessToken(raw)
	if err != nil {
		return nil, err
	}

	id, err := parseAccountID(accountID)
	if err != nil {
		return nil, ErrInvalidToken
	}

	user, err := g.store.FindByID(ctx.Context(), id)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}

	return user.Sanitized(), nil
}

func (g *Gateway) attach(ctx router.Context, user *User) {
	ctx.Locals(g.cfg.GetContextKey(), user)
	ctx.SetContext(WithContext(ctx.Context(), user))
}

// extractRawToken walks the configured token lookup sources in order.
// The lookup string follows the "header:Authorization,query:token,
// cookie:user" convention.
func extractRawToken(ctx router.Context, tokenLookup, authScheme string) (string, error) {
	if tokenLookup == "" {
		tokenLookup = defaultTokenLookup
	}

	var raw string
	var err error

	for _, extractor := range tokenExtractors(tokenLookup, authScheme) {
		raw, err = extractor(ctx)
		if raw != "" && err == nil {
			return raw, nil
		}
	}

	if err == nil {
		err = ErrUnauthenticated
	}
	return "", err
}

type tokenExtractor func(c router.Context) (string, error)

func tokenExtractors(tokenLookup, authScheme string) []tokenExtractor {
	if authScheme == "" {
		authScheme = "Bearer"
	}

	extractors := make([]tokenExtractor, 0)

	for _, rootPart := range strings.Split(tokenLookup, ",") {
		parts := strings.Split(strings.TrimSpace(rootPart), ":")
		if len(parts) != 2 {
			continue
		}

		name := strings.TrimSpace(parts[1])

		switch strings.TrimSpace(parts[0]) {
		case "header":
			extractors = append(extractors, tokenFromHeader(name, authScheme))
		case "query":
			extractors = append(extractors, tokenFromQuery(name))
		case "cookie":
			extractors = append(extractors, tokenFromCookie(name))
		}
	}

	return extractors
}

// tokenFromHeader returns an extractor that reads the bearer scheme header.
func tokenFromHeader(header, authScheme string) tokenExtractor {
	return func(c router.Context) (string, error) {
		a := c.GetString(header, "")
		l := len(authScheme)
		if len(a) > l+1 && strings.EqualFold(a[:l], authScheme) {
			return strings.TrimSpace(a[l:]), nil
		}
		return "", ErrUnauthenticated
	}
}

func tokenFromQuery(param string) tokenExtractor {
	return func(c router.Context) (string, error) {
		token := c.Query(param, "")
		if token == "" {
			return "", ErrUnauthenticated
		}
		return token, nil
	}
}

func tokenFromCookie(name string) tokenExtractor {
	return func(c router.Context) (string, error) {
		token := c.Cookies(name)
		if token == "" {
			return "", ErrUnauthenticated
		}
		return token, nil
	}
}
