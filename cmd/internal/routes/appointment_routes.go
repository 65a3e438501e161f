package routes

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"medibook/cmd/internal/auth"
	"medibook/cmd/internal/service"
	"medibook/cmd/internal/utils/apierror"
)

type AppointmentService interface {
	GetAppointments(callerID int, callerRole string) ([]*service.AppointmentResponse, apierror.ErrorResponse)
	CreateAppointment(req *service.AppointmentRequest, callerID int, callerRole string) (*service.AppointmentResponse, apierror.ErrorResponse)
	UpdateStatus(id int, req *service.StatusRequest, callerID int, callerRole string) (*service.AppointmentResponse, apierror.ErrorResponse)
}

type DefaultAppointmentRoute struct {
	AppointmentService AppointmentService
}

func NewAppointmentDefault(apptService AppointmentService) *DefaultAppointmentRoute {
	return &DefaultAppointmentRoute{AppointmentService: apptService}
}

func (a *DefaultAppointmentRoute) GetAppointments(c echo.Context) error {
	callerID, role, err := callerIdentity(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, apierror.InvalidAuthTokenError)
	}

	appts, apierr := a.AppointmentService.GetAppointments(callerID, role)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}

	resp := echo.Map{"appointments": appts}
	return c.JSON(http.StatusOK, &resp)
}

func (a *DefaultAppointmentRoute) CreateAppointment(c echo.Context) error {
	var req service.AppointmentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, apierror.MalformedBodyError)
	}

	callerID, role, err := callerIdentity(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, apierror.InvalidAuthTokenError)
	}

	appt, apierr := a.AppointmentService.CreateAppointment(&req, callerID, role)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}
	return c.JSON(http.StatusCreated, appt)
}

func (a *DefaultAppointmentRoute) UpdateStatus(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, apierror.NewInvalidParamTypeError("id", "int"))
	}

	var req service.StatusRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, apierror.MalformedBodyError)
	}

	callerID, role, err := callerIdentity(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, apierror.InvalidAuthTokenError)
	}

	appt, apierr := a.AppointmentService.UpdateStatus(id, &req, callerID, role)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}
	return c.JSON(http.StatusOK, appt)
}

func callerIdentity(c echo.Context) (int, string, error) {
	claims, err := auth.ClaimsFromCtx(c)
	if err != nil {
		return 0, "", err
	}

	callerID, err := strconv.Atoi(claims.Subject)
	if err != nil {
		return 0, "", auth.ErrBadToken
	}
	return callerID, claims.Role, nil
}
