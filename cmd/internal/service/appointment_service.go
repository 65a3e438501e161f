package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/gommon/log"

	"medibook/cmd/internal/domain/entity"
	"medibook/cmd/internal/integration/fcm"
	"medibook/cmd/internal/relay"
	"medibook/cmd/internal/utils"
	"medibook/cmd/internal/utils/apierror"
)

type AppointmentRepository interface {
	Save(appointment *entity.Appointment) error
	FindByID(id int) (*entity.Appointment, error)
	FindAll() ([]*entity.Appointment, error)
	FindByPatientID(id int) ([]*entity.Appointment, error)
	FindByDoctorID(id int) ([]*entity.Appointment, error)
	IsSlotFree(doctorID int, date, clock string) (bool, error)
}

// Broadcaster fans an event out to every connected relay listener.
type Broadcaster interface {
	Publish(event relay.Event)
}

type AppointmentRequest struct {
	PatientID int    `json:"patient" validate:"required"`
	DoctorID  int    `json:"doctor" validate:"required"`
	Date      string `json:"date" validate:"required,dateonly"`
	Time      string `json:"time" validate:"required,clocktime"`
}

type StatusRequest struct {
	Status string `json:"status" validate:"required,oneof=Confirmed Cancelled"`
}

type AppointmentResponse struct {
	ID        int    `json:"id"`
	PatientID int    `json:"patient"`
	DoctorID  int    `json:"doctor"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type DefaultAppointmentService struct {
	AppointmentRepo AppointmentRepository
	UserRepo        UserRepository
	Validate        *validator.Validate
	Relay           Broadcaster
	Push            fcm.SenderInterface
}

func NewAppointmentService(apptRepo AppointmentRepository, userRepo UserRepository, validate *validator.Validate, broadcaster Broadcaster, push fcm.SenderInterface) *DefaultAppointmentService {
	return &DefaultAppointmentService{
		AppointmentRepo: apptRepo,
		UserRepo:        userRepo,
		Validate:        validate,
		Relay:           broadcaster,
		Push:            push,
	}
}

// GetAppointments applies the role-keyed visibility filter: a doctor
// sees appointments where they are the doctor, a patient their own,
// an admin all of them.
func (a *DefaultAppointmentService) GetAppointments(callerID int, callerRole string) ([]*AppointmentResponse, apierror.ErrorResponse) {
	var appts []*entity.Appointment
	var err error

	switch callerRole {
	case entity.RoleDoctor:
		appts, err = a.AppointmentRepo.FindByDoctorID(callerID)
	case entity.RolePatient:
		appts, err = a.AppointmentRepo.FindByPatientID(callerID)
	case entity.RoleAdmin:
		appts, err = a.AppointmentRepo.FindAll()
	default:
		return nil, apierror.ForbiddenError
	}

	if err != nil {
		log.Errorf("failed to find appointments for user %d: %v", callerID, err)
		return nil, apierror.InternalServerError
	}

	response := make([]*AppointmentResponse, len(appts))
	for i, appt := range appts {
		response[i] = toAppointmentResponse(appt)
	}
	return response, nil
}

// CreateAppointment books an appointment with status Pending. A patient
// may only book for themself; an admin may book for any patient; a
// doctor may not initiate bookings.
func (a *DefaultAppointmentService) CreateAppointment(req *AppointmentRequest, callerID int, callerRole string) (*AppointmentResponse, apierror.ErrorResponse) {
	utils.Sanitize(req)
	if err := a.Validate.Struct(req); err != nil {
		return nil, apierror.FromValidationError(err)
	}

	switch callerRole {
	case entity.RolePatient:
		if req.PatientID != callerID {
			return nil, apierror.ForbiddenError
		}
	case entity.RoleAdmin:
		// May book on behalf of any patient.
	default:
		return nil, apierror.ForbiddenError
	}

	patient, apierr := a.fetchAccount(req.PatientID)
	if apierr != nil {
		return nil, apierr
	}
	if patient == nil || patient.Role != entity.RolePatient {
		return nil, apierror.NewFieldError("patient", "must reference a patient account")
	}

	doctor, apierr := a.fetchAccount(req.DoctorID)
	if apierr != nil {
		return nil, apierr
	}
	if doctor == nil || doctor.Role != entity.RoleDoctor {
		return nil, apierror.NewFieldError("doctor", "must reference a doctor account")
	}

	free, err := a.AppointmentRepo.IsSlotFree(doctor.ID, req.Date, req.Time)
	if err != nil {
		log.Errorf("failed to check doctor %d availability: %v", doctor.ID, err)
		return nil, apierror.InternalServerError
	}
	if !free {
		return nil, apierror.SlotTakenError
	}

	now := utils.NowUTC()
	appointment := &entity.Appointment{
		PatientID: patient.ID,
		DoctorID:  doctor.ID,
		Date:      req.Date,
		Time:      req.Time,
		Status:    entity.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = a.AppointmentRepo.Save(appointment)
	if err != nil {
		log.Errorf("failed to save appointment: %v", err)
		return nil, apierror.InternalServerError
	}

	a.Relay.Publish(relay.Event{Message: "New appointment booked!"})
	a.notify(doctor, "New appointment",
		fmt.Sprintf("%s booked an appointment on %s at %s", patient.Username, appointment.Date, appointment.Time))

	return toAppointmentResponse(appointment), nil
}

// UpdateStatus moves an appointment to Confirmed or Cancelled. A doctor
// may update their own appointments, an admin any; a patient may only
// cancel their own.
func (a *DefaultAppointmentService) UpdateStatus(id int, req *StatusRequest, callerID int, callerRole string) (*AppointmentResponse, apierror.ErrorResponse) {
	utils.Sanitize(req)
	if err := a.Validate.Struct(req); err != nil {
		return nil, apierror.FromValidationError(err)
	}

	appt, err := a.AppointmentRepo.FindByID(id)
	if err != nil {
		log.Errorf("failed to fetch appointment by id %d: %v", id, err)
		return nil, apierror.InternalServerError
	}
	if appt == nil {
		return nil, apierror.NotFoundError
	}

	switch callerRole {
	case entity.RoleAdmin:
	case entity.RoleDoctor:
		if appt.DoctorID != callerID {
			return nil, apierror.NotFoundError
		}
	case entity.RolePatient:
		if appt.PatientID != callerID {
			return nil, apierror.NotFoundError
		}
		if req.Status != entity.StatusCancelled {
			return nil, apierror.ForbiddenError
		}
	default:
		return nil, apierror.ForbiddenError
	}

	appt.Status = req.Status
	appt.UpdatedAt = utils.NowUTC()

	err = a.AppointmentRepo.Save(appt)
	if err != nil {
		log.Errorf("failed to update appointment %d: %v", id, err)
		return nil, apierror.InternalServerError
	}

	a.Relay.Publish(relay.Event{
		Message: fmt.Sprintf("Appointment on %s at %s is now %s", appt.Date, appt.Time, appt.Status),
	})
	a.notifyParties(appt)

	return toAppointmentResponse(appt), nil
}

func (a *DefaultAppointmentService) fetchAccount(id int) (*entity.User, apierror.ErrorResponse) {
	user, err := a.UserRepo.FindByID(id)
	if err != nil {
		log.Errorf("failed to fetch user %d: %v", id, err)
		return nil, apierror.InternalServerError
	}
	return user, nil
}

func (a *DefaultAppointmentService) notifyParties(appt *entity.Appointment) {
	title := "Appointment " + appt.Status
	body := fmt.Sprintf("Your appointment on %s at %s is now %s", appt.Date, appt.Time, appt.Status)

	for _, id := range []int{appt.PatientID, appt.DoctorID} {
		user, err := a.UserRepo.FindByID(id)
		if err != nil || user == nil {
			continue
		}
		a.notify(user, title, body)
	}
}

// notify sends a one-shot push to the user's registered device. Push
// delivery is best-effort and never fails the mutation that caused it.
func (a *DefaultAppointmentService) notify(user *entity.User, title, body string) {
	if a.Push == nil || user.DeviceToken == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	msgID, err := a.Push.SendNotification(ctx, title, body, *user.DeviceToken)
	if err != nil {
		log.Errorf("failed to push notification to user %d: %v", user.ID, err)
		return
	}
	log.Debugf("notification sent to user %d: %s", user.ID, msgID)
}

func toAppointmentResponse(appt *entity.Appointment) *AppointmentResponse {
	return &AppointmentResponse{
		ID:        appt.ID,
		PatientID: appt.PatientID,
		DoctorID:  appt.DoctorID,
		Date:      appt.Date,
		Time:      appt.Time,
		Status:    appt.Status,
		CreatedAt: utils.FormatEpoch(appt.CreatedAt),
		UpdatedAt: utils.FormatEpoch(appt.UpdatedAt),
	}
}
