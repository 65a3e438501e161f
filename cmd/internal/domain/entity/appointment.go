package entity

const (
	StatusPending   = "Pending"
	StatusConfirmed = "Confirmed"
	StatusCancelled = "Cancelled"
)

type Appointment struct {
	ID        int    `gorm:"primaryKey"`
	PatientID int    `gorm:"not null"` // References: users(id), role patient
	DoctorID  int    `gorm:"not null"` // References: users(id), role doctor
	Date      string `gorm:"not null"` // YYYY-MM-DD
	Time      string `gorm:"not null"` // HH:MM
	Status    string `gorm:"not null;default:Pending"`
	CreatedAt int64  `gorm:"not null"`
	UpdatedAt int64  `gorm:"not null"`

	// Relations
	Patient User `gorm:"foreignKey:PatientID;references:ID"`
	Doctor  User `gorm:"foreignKey:DoctorID;references:ID"`
}
