package echoapi

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/bytedance/sonic"
	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/admitflow/core"
	"github.com/trezcool/admitflow/core/user"
)

var (
	contextClaimsKey = "claims"
	contextUserKey   = "user"
	tokenCookieName  = "token"
	userCookieName   = "user"
	tokenAudience    = "admitflow-dashboard"
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.RegisteredClaims
	OrigIssuedAt int64  `json:"oriat,omitempty"`
	Username     string `json:"username,omitempty"`
	Email        string `json:"email,omitempty"`
	Role         string `json:"role,omitempty"`
}

// NewClaims returns the claims of usr. origIat keeps the original issue time across refreshes.
func NewClaims(conf *core.Config, usr user.User, origIat ...int64) *Claims {
	now := time.Now()

	oriat := now.Unix()
	if len(origIat) > 0 {
		oriat = origIat[0]
	}

	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    conf.AppName,
			Subject:   usr.ID,
			Audience:  jwt.ClaimStrings{tokenAudience},
			ExpiresAt: jwt.NewNumericDate(now.Add(conf.Server.JWTExpirationDelta)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		OrigIssuedAt: oriat,
		Username:     usr.Username,
		Email:        usr.Email,
		Role:         usr.Role,
	}
}

// GenerateToken generates a signed JWT token string representing the user Claims.
func GenerateToken(conf *core.Config, claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString([]byte(conf.SecretKey))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

type auth struct {
	conf *core.Config
	svc  user.Service
}

func newAuth(conf *core.Config, svc user.Service) *auth {
	return &auth{conf: conf, svc: svc}
}

func (a *auth) parseToken(raw string) (*Claims, error) {
	claims := new(Claims)
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(a.conf.SecretKey), nil
	})
	if err != nil {
		return nil, err
	}
	if !claims.VerifyAudience(tokenAudience, true) {
		return nil, errors.New("invalid token audience")
	}
	return claims, nil
}

// middleware reads the token from the `Authorization: Bearer` header, falling back to the `token` cookie.
func (a *auth) middleware() echo.MiddlewareFunc {
	return middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
		KeyLookup:  "header:" + echo.HeaderAuthorization + ",cookie:" + tokenCookieName,
		AuthScheme: "Bearer",
		Validator: func(raw string, ctx echo.Context) (bool, error) {
			claims, err := a.parseToken(raw)
			if err != nil {
				return false, err
			}
			ctx.Set(contextClaimsKey, claims)
			return true, nil
		},
		ErrorHandler: func(err error, ctx echo.Context) error {
			return errUnauthorized
		},
	})
}

func (a *auth) authenticate(ctx context.Context, uname, pwd string) (user.User, error) {
	usr, err := a.svc.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		if core.IsNotFound(err) {
			return user.User{}, errAuthenticationFailed
		}
		return user.User{}, errors.Wrap(err, "finding user by username or email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return user.User{}, errAuthenticationFailed
	}
	if !usr.IsActive {
		return user.User{}, errAccountDeactivated
	}
	usr, err = a.svc.SetLastLogin(ctx, usr)
	return usr, errors.Wrap(err, "setting lastLogin")
}

func getContextClaims(ctx echo.Context) (*Claims, error) {
	if claims, ok := ctx.Get(contextClaimsKey).(*Claims); ok {
		return claims, nil
	}
	return nil, errUnauthorized
}

// contextUser returns the user loaded by a previous getContextUser call, if any.
func contextUser(ctx echo.Context) (user.User, bool) {
	usr, ok := ctx.Get(contextUserKey).(user.User)
	return usr, ok
}

// getContextUser loads the authenticated user once per request.
func (a *auth) getContextUser(ctx echo.Context) (user.User, error) {
	if usr, ok := contextUser(ctx); ok {
		return usr, nil
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return user.User{}, err
	}
	usr, err := a.svc.GetByID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		if core.IsNotFound(err) {
			return user.User{}, errUnauthorized
		}
		return user.User{}, errors.Wrap(err, "finding user by ID")
	}
	if !usr.IsActive {
		return user.User{}, errAccountDeactivated
	}
	ctx.Set(contextUserKey, usr)
	return usr, nil
}

// requireRole rejects users whose role ranks below role.
func (a *auth) requireRole(role string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := a.getContextUser(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			if user.RolePriority(usr.Role) < user.RolePriority(role) {
				return errHttpForbidden
			}
			return next(ctx)
		}
	}
}

func (a *auth) refreshToken(ctx echo.Context) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", err
	}
	usr, err := a.getContextUser(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context user")
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(a.conf.Server.JWTRefreshExpirationDelta)
	if time.Now().After(expTime) {
		return "", errRefreshExpired
	}

	return GenerateToken(a.conf, NewClaims(a.conf, usr, claims.OrigIssuedAt))
}

type cookieUser struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

func (a *auth) setCookies(ctx echo.Context, token string, usr user.User) error {
	data, err := sonic.Marshal(cookieUser{ID: usr.ID, Name: usr.Name, Username: usr.Username, Role: usr.Role})
	if err != nil {
		return errors.Wrap(err, "encoding user cookie")
	}
	expires := time.Now().Add(a.conf.Server.JWTExpirationDelta)

	ctx.SetCookie(&http.Cookie{
		Name:     tokenCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   a.conf.Server.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	ctx.SetCookie(&http.Cookie{
		Name:     userCookieName,
		Value:    url.QueryEscape(string(data)),
		Path:     "/",
		Expires:  expires,
		Secure:   a.conf.Server.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (a *auth) clearCookies(ctx echo.Context) {
	for _, name := range []string{tokenCookieName, userCookieName} {
		ctx.SetCookie(&http.Cookie{
			Name:    name,
			Value:   "",
			Path:    "/",
			Expires: time.Unix(0, 0),
			MaxAge:  -1,
		})
	}
}
