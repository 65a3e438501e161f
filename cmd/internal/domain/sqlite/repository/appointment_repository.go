package repository

import (
	"errors"

	"gorm.io/gorm"

	"medibook/cmd/internal/domain/entity"
)

type DefaultAppointmentRepository struct {
	db *gorm.DB
}

func NewAppointmentRepository(db *gorm.DB) *DefaultAppointmentRepository {
	return &DefaultAppointmentRepository{db: db}
}

func (a *DefaultAppointmentRepository) FindByID(id int) (*entity.Appointment, error) {
	var appt entity.Appointment
	err := a.db.First(&appt, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &appt, err
}

func (a *DefaultAppointmentRepository) FindAll() ([]*entity.Appointment, error) {
	var appts []*entity.Appointment
	err := a.db.Order("date asc, time asc").Find(&appts).Error
	return appts, err
}

func (a *DefaultAppointmentRepository) FindByPatientID(id int) ([]*entity.Appointment, error) {
	var appts []*entity.Appointment
	err := a.db.Where("patient_id = ?", id).Order("date asc, time asc").Find(&appts).Error
	return appts, err
}

func (a *DefaultAppointmentRepository) FindByDoctorID(id int) ([]*entity.Appointment, error) {
	var appts []*entity.Appointment
	err := a.db.Where("doctor_id = ?", id).Order("date asc, time asc").Find(&appts).Error
	return appts, err
}

// IsSlotFree reports whether the doctor has no live appointment at the
// given date and time. Cancelled appointments do not block the slot.
func (a *DefaultAppointmentRepository) IsSlotFree(doctorID int, date, clock string) (bool, error) {
	var count int64
	err := a.db.Model(&entity.Appointment{}).
		Where("doctor_id = ?", doctorID).
		Where("date = ?", date).
		Where("time = ?", clock).
		Where("status <> ?", entity.StatusCancelled).
		Count(&count).Error

	if err != nil {
		return false, err
	}
	return count == 0, nil
}

func (a *DefaultAppointmentRepository) Save(appointment *entity.Appointment) error {
	return a.db.Save(appointment).Error
}
