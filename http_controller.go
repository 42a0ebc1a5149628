package identity

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/url"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-router"
)

const oauthStateCookie = "oauth_state"

// OAuthProvider is the handshake client the controller drives for the
// callback contract. Implementations live under providers/.
type OAuthProvider interface {
	Name() AuthMethod
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (string, error)
	UserInfo(ctx context.Context, accessToken string) (*Profile, error)
}

// RouteRegistrar captures the router methods used by the controller.
type RouteRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}

// Controller exposes the HTTP contracts: local register/login, token
// refresh, current user, profile update, and the OAuth callback flow.
type Controller struct {
	resolver  *Resolver
	tokens    *TokenService
	gateway   *Gateway
	store     Users
	providers map[AuthMethod]OAuthProvider
	cfg       Config
	logger    Logger
}

// ControllerOption configures the Controller.
type ControllerOption func(*Controller)

// WithProvider registers an OAuth provider with the controller.
func WithProvider(p OAuthProvider) ControllerOption {
	return func(c *Controller) {
		if p != nil {
			c.providers[p.Name()] = p
		}
	}
}

// WithControllerLogger overrides the controller logger.
func WithControllerLogger(l Logger) ControllerOption {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewController wires the controller over the core services.
func NewController(resolver *Resolver, tokens *TokenService, gateway *Gateway, store Users, cfg Config, opts ...ControllerOption) *Controller {
	c := &Controller{
		resolver:  resolver,
		tokens:    tokens,
		gateway:   gateway,
		store:     store,
		providers: map[AuthMethod]OAuthProvider{},
		cfg:       cfg,
		logger:    defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c
}

// RegisterRoutes registers the auth routes on the given router group.
func (c *Controller) RegisterRoutes(group RouteRegistrar) {
	group.Post("/register", c.Register)
	group.Post("/login", c.Login)
	group.Post("/refresh", c.Refresh)
	group.Get("/me", c.Me, c.gateway.RequireAuth())
	group.Post("/profile", c.UpdateProfile, c.gateway.RequireAuth())
	group.Get("/:provider/callback", c.OAuthCallback)
	group.Get("/:provider", c.BeginOAuth)
}

// RegisterRequest payload
type RegisterRequest struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
	FullName string `form:"full_name" json:"full_name"`
	Username string `form:"username" json:"username"`
}

// Validate will run validation rules
func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 0)),
		validation.Field(&r.FullName, validation.Required),
		validation.Field(&r.Username, validation.Required, is.Alphanumeric),
	)
}

// LoginRequest payload
type LoginRequest struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

// RefreshRequest payload
type RefreshRequest struct {
	RefreshToken string `form:"refresh_token" json:"refresh_token"`
}

// Validate will run validation rules
func (r RefreshRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RefreshToken, validation.Required),
	)
}

// UpdateProfileRequest payload; both fields are optional.
type UpdateProfileRequest struct {
	FullName string `form:"full_name" json:"full_name"`
	Username string `form:"username" json:"username"`
}

// Validate will run validation rules
func (r UpdateProfileRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, is.Alphanumeric),
	)
}

// Register handles local registration and returns the account with a fresh
// token pair.
func (c *Controller) Register(ctx router.Context) error {
	payload := new(RegisterRequest)
	if err := ctx.Bind(payload); err != nil {
		return badRequest(ctx, err)
	}
	if err := payload.Validate(); err != nil {
		return badRequest(ctx, err)
	}

	user, err := c.resolver.RegisterLocal(ctx.Context(), RegisterInput{
		Email:    payload.Email,
		Password: payload.Password,
		FullName: payload.FullName,
		Username: payload.Username,
	})
	if err != nil {
		return respondError(ctx, err)
	}

	pair, err := c.tokens.IssuePair(user.ID.String())
	if err != nil {
		return respondError(ctx, err)
	}

	return ctx.JSON(router.StatusCreated, map[string]any{
		"success": true,
		"message": "User registered successfully",
		"data":    authPayload(user, pair),
	})
}

// Login handles local credential resolution.
func (c *Controller) Login(ctx router.Context) error {
	payload := new(LoginRequest)
	if err := ctx.Bind(payload); err != nil {
		return badRequest(ctx, err)
	}
	if err := payload.Validate(); err != nil {
		return badRequest(ctx, err)
	}

	user, err := c.resolver.ResolveLocal(ctx.Context(), payload.Email, payload.Password)
	if err != nil {
		return respondError(ctx, err)
	}

	pair, err := c.tokens.IssuePair(user.ID.String())
	if err != nil {
		return respondError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"success": true,
		"message": "Login successful",
		"data":    authPayload(user, pair),
	})
}

// Refresh trades a refresh token for a new pair.
func (c *Controller) Refresh(ctx router.Context) error {
	payload := new(RefreshRequest)
	if err := ctx.Bind(payload); err != nil {
		return badRequest(ctx, err)
	}
	if err := payload.Validate(); err != nil {
		return respondError(ctx, ErrInvalidToken)
	}

	pair, err := c.tokens.Rotate(ctx.Context(), payload.RefreshToken)
	if err != nil {
		return respondError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"success": true,
		"data": map[string]any{
			"token":        pair.AccessToken,
			"refreshToken": pair.RefreshToken,
		},
	})
}

// Me returns the authenticated account.
func (c *Controller) Me(ctx router.Context) error {
	user, ok := UserFromRouter(ctx, c.cfg.GetContextKey())
	if !ok {
		return respondError(ctx, ErrUnauthenticated)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"success": true,
		"data":    map[string]any{"user": user},
	})
}

// UpdateProfile changes the mutable display fields of the authenticated
// account. A username change re-checks uniqueness before writing; the unique
// index still backs the check if another change races it.
func (c *Controller) UpdateProfile(ctx router.Context) error {
	user, ok := UserFromRouter(ctx, c.cfg.GetContextKey())
	if !ok {
		return respondError(ctx, ErrUnauthenticated)
	}

	payload := new(UpdateProfileRequest)
	if err := ctx.Bind(payload); err != nil {
		return badRequest(ctx, err)
	}
	if err := payload.Validate(); err != nil {
		return badRequest(ctx, err)
	}

	patch := &User{ID: user.ID}

	if payload.FullName != "" {
		patch.FullName = payload.FullName
	}

	if payload.Username != "" && payload.Username != user.Username {
		existing, err := c.store.FindByUsername(ctx.Context(), payload.Username)
		if err == nil && existing.ID != user.ID {
			return respondError(ctx, ErrUsernameTaken)
		}
		if err != nil && !repository.IsRecordNotFound(err) {
			return respondError(ctx, err)
		}
		patch.Username = payload.Username
	}

	updated, err := c.store.Update(ctx.Context(), patch)
	if err != nil {
		return respondError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"success": true,
		"message": "Profile updated successfully",
		"data":    map[string]any{"user": updated.Sanitized()},
	})
}

// BeginOAuth redirects the caller to the provider consent screen, pinning a
// state nonce in a short-lived cookie for the callback to compare.
func (c *Controller) BeginOAuth(ctx router.Context) error {
	provider, ok := c.providers[AuthMethod(ctx.Param("provider"))]
	if !ok {
		return respondError(ctx, goerrors.New("unknown provider", goerrors.CategoryNotFound).
			WithCode(goerrors.CodeNotFound))
	}

	state, err := generateState()
	if err != nil {
		return respondError(ctx, err)
	}

	ctx.Cookie(&router.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Expires:  time.Now().Add(10 * time.Minute),
		HTTPOnly: true,
		SameSite: "Lax",
	})

	return ctx.Redirect(provider.AuthCodeURL(state), router.StatusTemporaryRedirect)
}

// OAuthCallback completes the handshake, resolves the profile to an
// account, and redirects to the client with the issued tokens appended as
// query parameters. All failures redirect to the client failure route.
func (c *Controller) OAuthCallback(ctx router.Context) error {
	provider, ok := c.providers[AuthMethod(ctx.Param("provider"))]
	if !ok {
		return c.redirectFailure(ctx, "unknown_provider")
	}

	if errCode := ctx.Query("error", ""); errCode != "" {
		return c.redirectFailure(ctx, errCode)
	}

	code := ctx.Query("code", "")
	state := ctx.Query("state", "")
	if code == "" || state == "" {
		return c.redirectFailure(ctx, "missing_params")
	}

	if cookie := ctx.Cookies(oauthStateCookie); cookie != "" && cookie != state {
		return c.redirectFailure(ctx, "state_mismatch")
	}

	accessToken, err := provider.Exchange(ctx.Context(), code)
	if err != nil {
		c.logger.Error("oauth exchange failed for %s: %v", provider.Name(), err)
		return c.redirectFailure(ctx, "exchange_failed")
	}

	profile, err := provider.UserInfo(ctx.Context(), accessToken)
	if err != nil {
		c.logger.Error("oauth user info failed for %s: %v", provider.Name(), err)
		return c.redirectFailure(ctx, "user_info_failed")
	}

	user, err := c.resolver.ResolveOAuth(ctx.Context(), *profile)
	if err != nil {
		c.logger.Error("oauth resolution failed for %s: %v", provider.Name(), err)
		return c.redirectFailure(ctx, "resolution_failed")
	}

	pair, err := c.tokens.IssuePair(user.ID.String())
	if err != nil {
		return c.redirectFailure(ctx, "token_issue_failed")
	}

	redirect := c.cfg.GetClientURL() + "/auth/success"
	redirect = appendQueryParam(redirect, "token", pair.AccessToken)
	redirect = appendQueryParam(redirect, "refreshToken", pair.RefreshToken)

	return ctx.Redirect(redirect, router.StatusTemporaryRedirect)
}

func (c *Controller) redirectFailure(ctx router.Context, reason string) error {
	redirect := appendQueryParam(c.cfg.GetClientURL()+"/auth/failure", "error", reason)
	return ctx.Redirect(redirect, router.StatusTemporaryRedirect)
}

func authPayload(user *User, pair *TokenPair) map[string]any {
	return map[string]any{
		"user":         user.Sanitized(),
		"token":        pair.AccessToken,
		"refreshToken": pair.RefreshToken,
	}
}

func badRequest(ctx router.Context, err error) error {
	return ctx.JSON(router.StatusBadRequest, map[string]any{
		"success": false,
		"message": err.Error(),
	})
}

// respondError maps typed identity errors onto the outward JSON contract.
// Internal failures are logged by their producers and surfaced generically.
func respondError(ctx router.Context, err error) error {
	var richErr *goerrors.Error
	if !errors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "internal server error").
			WithCode(goerrors.CodeInternal)
	}

	code := richErr.Code
	if code == 0 {
		code = router.StatusInternalServerError
	}

	message := richErr.Message
	if richErr.Category == goerrors.CategoryInternal {
		message = "Internal server error"
	}

	return ctx.JSON(code, map[string]any{
		"success": false,
		"message": message,
	})
}

func generateState() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate state")
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func appendQueryParam(target, key, value string) string {
	sep := "?"
	if strings.Contains(target, "?") {
		sep = "&"
	}
	return target + sep + key + "=" + url.QueryEscape(value)
}
