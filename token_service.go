package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

// TokenPair is an access/refresh token set issued for one account.
type TokenPair struct {
	AccessToken  string `json:"token"`
	RefreshToken string `json:"refresh_token"`
}

// TokenService issues and verifies self-contained signed tokens. Access and
// refresh tokens use distinct signing keys so a compromise of one key cannot
// forge the other kind; a kind claim rejects cross-use even when an operator
// configures both keys identically.
//
// There is no revocation store: Rotate does not record the spent refresh
// token, which stays valid until it expires. This mirrors the stateless
// design the service inherits and is a documented limitation, not an
// oversight.
type TokenService struct {
	store             Users
	accessSigningKey  []byte
	refreshSigningKey []byte
	accessTTL         time.Duration
	refreshTTL        time.Duration
	issuer            string
	audience          jwt.ClaimStrings
	logger            Logger
}

// NewTokenService creates a TokenService from configuration. The store is
// consulted during rotation to confirm the account still exists.
func NewTokenService(store Users, cfg Config) *TokenService {
	accessTTL := time.Duration(cfg.GetAccessTokenExpiration()) * time.Hour
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTokenExpiration * time.Hour
	}

	refreshTTL := time.Duration(cfg.GetRefreshTokenExpiration()) * time.Hour
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTokenExpiration * time.Hour
	}

	return &TokenService{
		store:             store,
		accessSigningKey:  []byte(cfg.GetAccessSigningKey()),
		refreshSigningKey: []byte(cfg.GetRefreshSigningKey()),
		accessTTL:         accessTTL,
		refreshTTL:        refreshTTL,
		issuer:            cfg.GetIssuer(),
		audience:          jwt.ClaimStrings(cfg.GetAudience()),
		logger:            defLogger{},
	}
}

// WithLogger overrides the token service logger.
func (ts *TokenService) WithLogger(l Logger) *TokenService {
	if l != nil {
		ts.logger = l
	}
	return ts
}

// IssueAccessToken mints a short-lived access token for the account id.
func (ts *TokenService) IssueAccessToken(accountID string) (string, error) {
	return ts.issue(accountID, TokenKindAccess, ts.accessSigningKey, ts.accessTTL)
}

// IssueRefreshToken mints a refresh token for the account id.
func (ts *TokenService) IssueRefreshToken(accountID string) (string, error) {
	return ts.issue(accountID, TokenKindRefresh, ts.refreshSigningKey, ts.refreshTTL)
}

// IssuePair mints a fresh access/refresh pair.
func (ts *TokenService) IssuePair(accountID string) (*TokenPair, error) {
	access, err := ts.IssueAccessToken(accountID)
	if err != nil {
		return nil, err
	}

	refresh, err := ts.IssueRefreshToken(accountID)
	if err != nil {
		return nil, err
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// VerifyAccessToken validates an access token and returns the account id it
// authorizes. Every failure collapses to ErrInvalidToken.
func (ts *TokenService) VerifyAccessToken(token string) (string, error) {
	return ts.verify(token, TokenKindAccess, ts.accessSigningKey)
}

// VerifyRefreshToken validates a refresh token and returns the account id.
func (ts *TokenService) VerifyRefreshToken(token string) (string, error) {
	return ts.verify(token, TokenKindRefresh, ts.refreshSigningKey)
}

// Rotate verifies a refresh token, confirms the account still exists, and
// issues a fresh pair. The old refresh token is not invalidated.
func (ts *TokenService) Rotate(ctx context.Context, refreshToken string) (*TokenPair, error) {
	accountID, err := ts.VerifyRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}

	id, err := parseAccountID(accountID)
	if err != nil {
		return nil, ErrInvalidToken
	}

	if _, err := ts.store.FindByID(ctx, id); err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	return ts.IssuePair(accountID)
}

func (ts *TokenService) issue(accountID string, kind TokenKind, key []byte, ttl time.Duration) (string, error) {
	if accountID == "" {
		return "", goerrors.New("account id is required", goerrors.CategoryBadInput)
	}

	now := time.Now()

	var aud jwt.ClaimStrings
	if len(ts.audience) > 0 {
		aud = make(jwt.ClaimStrings, len(ts.audience))
		copy(aud, ts.audience)
	}

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   accountID,
			Audience:  aud,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UID:  accountID,
		Kind: kind,
	}

	ensureTokenID(&claims.RegisteredClaims)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(key)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign token")
	}

	return signed, nil
}

func (ts *TokenService) verify(tokenString string, kind TokenKind, key []byte) (string, error) {
	parserOptions := make([]jwt.ParserOption, 0, 2)
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience...))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("token verify encountered unexpected signing method: %v", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return key, nil
	}, parserOptions...)

	if err != nil {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}

	if claims.Kind != kind {
		return "", ErrInvalidToken
	}

	subject := claims.SubjectID()
	if subject == "" {
		return "", ErrInvalidToken
	}

	return subject, nil
}
