package echoapi

import (
	"context"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/miradi/core"
	"github.com/trezcool/miradi/core/user"
)

const (
	tokenContextKey = "userToken"
	userContextKey  = "user"
	tokenAudience   = "miradi"
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64     `json:"oriat,omitempty"` // first login; bounds the refresh window
	Name         string    `json:"name,omitempty"`
	Email        string    `json:"email,omitempty"`
	Role         user.Role `json:"role,omitempty"`
}

// tokenIssuer signs and refreshes the HS256 access tokens.
type tokenIssuer struct {
	key        []byte
	issuer     string
	ttl        time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func newTokenIssuer(conf *core.Config) *tokenIssuer {
	return &tokenIssuer{
		key:        []byte(conf.SecretKey),
		issuer:     conf.AppName,
		ttl:        conf.Server.JWTExpirationDelta,
		refreshTTL: conf.Server.JWTRefreshExpirationDelta,
		now:        time.Now,
	}
}

// middleware verifies the bearer token and stores it in the context.
func (ti *tokenIssuer) middleware() echo.MiddlewareFunc {
	return middleware.JWTWithConfig(middleware.JWTConfig{
		SigningKey:    ti.key,
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    tokenContextKey,
		Claims:        new(Claims),
	})
}

func (ti *tokenIssuer) claims(usr user.User, origIssuedAt int64) *Claims {
	now := ti.now()
	if origIssuedAt == 0 {
		origIssuedAt = now.Unix()
	}
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    ti.issuer,
			Subject:   usr.ID,
			Audience:  tokenAudience,
			ExpiresAt: now.Add(ti.ttl).Unix(),
			IssuedAt:  now.Unix(),
		},
		OrigIssuedAt: origIssuedAt,
		Name:         usr.Name,
		Email:        usr.Email,
		Role:         usr.Role,
	}
}

func (ti *tokenIssuer) sign(claims *Claims) (string, error) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.key)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return token, nil
}

// issue returns a fresh token for usr.
func (ti *tokenIssuer) issue(usr user.User) (string, error) {
	return ti.sign(ti.claims(usr, 0))
}

// refresh extends a valid token, as long as its first login is within the refresh window.
func (ti *tokenIssuer) refresh(current Claims, usr user.User) (string, error) {
	if ti.now().After(time.Unix(current.OrigIssuedAt, 0).Add(ti.refreshTTL)) {
		return "", errRefreshExpired
	}
	return ti.sign(ti.claims(usr, current.OrigIssuedAt))
}

// login checks the credentials and records the login.
func login(ctx context.Context, svc *user.Service, email, pwd string) (user.User, error) {
	usr, err := svc.Authenticate(ctx, email, pwd)
	if err != nil {
		switch cause := errors.Cause(err); {
		case cause == user.ErrInactive:
			return user.User{}, errAccountDeactivated
		case cause == user.ErrBadPassword, core.IsNotFound(err):
			return user.User{}, errAuthenticationFailed
		}
		return user.User{}, errors.Wrap(err, "authenticating user")
	}
	if err = svc.SetLastLogin(ctx, &usr); err != nil {
		return user.User{}, errors.Wrap(err, "setting lastLogin")
	}
	return usr, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(tokenContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

// getContextUser returns the acting user loaded by activeUserMiddleware.
func getContextUser(ctx echo.Context) (user.User, error) {
	if usr, ok := ctx.Get(userContextKey).(user.User); ok {
		return usr, nil
	}
	return user.User{}, errUnauthorized
}

func loadContextUser(ctx echo.Context, svc *user.Service) (user.User, error) {
	if usr, err := getContextUser(ctx); err == nil {
		return usr, nil
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return user.User{}, errors.Wrap(err, "getting context claims")
	}
	usr, err := svc.GetByID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		if core.IsNotFound(err) {
			return user.User{}, errUnauthorized
		}
		return user.User{}, errors.Wrap(err, "finding user by ID")
	}
	ctx.Set(userContextKey, usr)
	return usr, nil
}
