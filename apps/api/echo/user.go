package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/trackwise/core"
	"github.com/trezcool/trackwise/core/user"
)

type userApi struct {
	svc user.ServiceInterface
}

func registerUserAPI(g *echo.Group, svc user.ServiceInterface) {
	api := userApi{svc: svc}

	ag := g.Group("/auth")
	ag.POST("/signup", api.signup)
	ag.POST("/login", api.login)
	ag.GET("/me", api.me)
}

type authResponse struct {
	Token string    `json:"token"`
	User  user.User `json:"user"`
}

func (api *userApi) signup(ctx echo.Context) error {
	var nu user.NewUser
	if err := ctx.Bind(&nu); err != nil {
		return core.NewValidationError(errors.New("invalid request body"))
	}
	if err := nu.Validate(validate, api.svc); err != nil {
		return err
	}

	usr, err := api.svc.Register(ctx.Request().Context(), nu)
	if err != nil {
		if errors.Cause(err) == user.ErrEmailExists {
			return core.NewValidationError(nil, core.FieldError{Field: "email", Error: user.ErrEmailExists.Error()})
		}
		return errors.Wrap(err, "registering user")
	}

	token, err := GenerateToken(GetUserClaims(usr))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, authResponse{Token: token, User: usr})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (api *userApi) login(ctx echo.Context) error {
	var req loginRequest
	if err := ctx.Bind(&req); err != nil {
		return core.NewValidationError(errors.New("invalid request body"))
	}
	req.Email = core.CleanString(req.Email, true)
	if err := validate.Struct(&req); err != nil {
		return err
	}

	usr, err := authenticate(ctx, req.Email, req.Password, api.svc)
	if err != nil {
		return err
	}

	token, err := GenerateToken(GetUserClaims(usr))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, authResponse{Token: token, User: usr})
}

// me returns the store-confirmed identity behind the request's token. This is
// the one endpoint where a valid token whose subject no longer exists yields
// a 404, distinct from the 401 of an expired or undecodable token; it resolves
// the identity itself instead of going through the shared guard.
func (api *userApi) me(ctx echo.Context) error {
	tokenStr, err := extractToken(ctx)
	if err != nil {
		return err
	}
	claims, err := VerifyToken(tokenStr)
	if err != nil {
		return errUnauthorized
	}
	usr, err := api.svc.GetByID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return errIdentityGone
		}
		return errors.Wrap(err, "resolving token identity")
	}
	if usr, err = api.svc.RefreshLastLogin(ctx.Request().Context(), usr); err != nil {
		return errors.Wrap(err, "refreshing last login")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"user": usr, "valid": true})
}
