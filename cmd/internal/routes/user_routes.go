package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"medibook/cmd/internal/auth"
	"medibook/cmd/internal/service"
	"medibook/cmd/internal/utils/apierror"
)

type UserService interface {
	Register(req *service.RegisterRequest) (*service.UserResponse, apierror.ErrorResponse)
	Login(req *service.LoginRequest) (*auth.TokenPair, apierror.ErrorResponse)
	Refresh(req *service.RefreshRequest) (*auth.TokenPair, apierror.ErrorResponse)
	GetDoctors() ([]*service.UserResponse, apierror.ErrorResponse)
	RegisterDevice(req *service.RegisterDeviceRequest, subject string) apierror.ErrorResponse
}

type DefaultUserRoute struct {
	UserService UserService
}

func NewUserDefault(userService UserService) *DefaultUserRoute {
	return &DefaultUserRoute{UserService: userService}
}

func (u *DefaultUserRoute) Register(c echo.Context) error {
	var req service.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, apierror.MalformedBodyError)
	}

	user, apierr := u.UserService.Register(&req)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}
	return c.JSON(http.StatusCreated, user)
}

func (u *DefaultUserRoute) Login(c echo.Context) error {
	var req service.LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, apierror.MalformedBodyError)
	}

	pair, apierr := u.UserService.Login(&req)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}
	return c.JSON(http.StatusOK, pair)
}

func (u *DefaultUserRoute) Refresh(c echo.Context) error {
	var req service.RefreshRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, apierror.MalformedBodyError)
	}

	pair, apierr := u.UserService.Refresh(&req)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}
	return c.JSON(http.StatusOK, pair)
}

func (u *DefaultUserRoute) GetDoctors(c echo.Context) error {
	doctors, apierr := u.UserService.GetDoctors()
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}

	resp := echo.Map{"doctors": doctors}
	return c.JSON(http.StatusOK, &resp)
}

func (u *DefaultUserRoute) RegisterDevice(c echo.Context) error {
	var req service.RegisterDeviceRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, apierror.MalformedBodyError)
	}

	claims, err := auth.ClaimsFromCtx(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, apierror.InvalidAuthTokenError)
	}

	apierr := u.UserService.RegisterDevice(&req, claims.Subject)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}
	return c.NoContent(http.StatusOK)
}
