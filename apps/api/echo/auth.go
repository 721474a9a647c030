package echoapi

import (
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/trackwise/core"
	"github.com/trezcool/trackwise/core/user"
)

var (
	signingMethod = jwt.SigningMethodHS256

	appName         string
	secretKey       []byte
	expirationDelta time.Duration

	contextClaimsKey = "claims"
	contextUserKey   = "user"

	ErrTokenExpired   = errors.New("token has expired")
	ErrTokenMalformed = errors.New("token is malformed")
)

// ConfigureAuth wires the token codec's signing parameters. Must be called
// once before any token is issued or verified.
func ConfigureAuth(conf *core.Config) {
	appName = conf.AppName
	secretKey = conf.SecretKey
	expirationDelta = conf.TokenExpirationDelta
}

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

func GetUserClaims(usr user.User) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    appName,
			Subject:   usr.ID,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(expirationDelta).Unix(),
		},
		Name:  usr.Name,
		Email: usr.Email,
	}
}

// GenerateToken generates a signed JWT token string representing the user Claims.
func GenerateToken(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(signingMethod, claims)
	ss, err := token.SignedString(secretKey)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// VerifyToken checks a token's structure, signature and expiry. It performs
// no store I/O: an expired or undecodable token simply yields no identity.
func VerifyToken(tokenStr string) (*Claims, error) {
	claims := new(Claims)
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method != signingMethod {
			return nil, ErrTokenMalformed
		}
		return secretKey, nil
	})
	if err != nil {
		var vErr *jwt.ValidationError
		if errors.As(err, &vErr) && vErr.Errors&jwt.ValidationErrorExpired != 0 {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenMalformed
	}
	if !token.Valid {
		return nil, ErrTokenMalformed
	}
	return claims, nil
}

// extractToken pulls the bearer value off the Authorization header.
func extractToken(ctx echo.Context) (string, error) {
	header := ctx.Request().Header.Get(echo.HeaderAuthorization)
	if header == "" {
		return "", errMissingToken
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", errMissingToken
	}
	return parts[1], nil
}

// authMiddleware is the owner-scoping guard's entry point: it verifies the
// bearer token, re-resolves the identity against the store (defense in depth
// against identities deleted after issuance), refreshes LastLogin within its
// rate limit and attaches the store-confirmed user to the request context.
func authMiddleware(svc user.ServiceInterface) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			tokenStr, err := extractToken(ctx)
			if err != nil {
				return err
			}
			claims, err := VerifyToken(tokenStr)
			if err != nil {
				return errUnauthorized
			}
			ctx.Set(contextClaimsKey, *claims)

			usr, err := svc.GetByID(ctx.Request().Context(), claims.Subject)
			if err != nil {
				if errors.Cause(err) == user.ErrNotFound {
					// a deleted subject is indistinguishable from a bad token
					return errUnauthorized
				}
				return errors.Wrap(err, "resolving token identity")
			}
			if usr, err = svc.RefreshLastLogin(ctx.Request().Context(), usr); err != nil {
				return errors.Wrap(err, "refreshing last login")
			}
			ctx.Set(contextUserKey, usr)
			return next(ctx)
		}
	}
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if claims, ok := ctx.Get(contextClaimsKey).(Claims); ok {
		return claims, nil
	}
	return Claims{}, errUnauthorized
}

func getContextUser(ctx echo.Context) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}
	return user.User{}, errUnauthorized
}

func authenticate(ctx echo.Context, email, pwd string, svc user.ServiceInterface) (user.User, error) {
	usr, err := svc.GetByEmail(ctx.Request().Context(), email)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.User{}, errAuthenticationFailed
		}
		return user.User{}, errors.Wrap(err, "finding user by email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return user.User{}, errAuthenticationFailed
	}
	if usr, err = svc.RefreshLastLogin(ctx.Request().Context(), usr); err != nil {
		return user.User{}, errors.Wrap(err, "setting lastLogin")
	}
	return usr, nil
}
