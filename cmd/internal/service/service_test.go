package service

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"

	"medibook/cmd/internal/auth"
	"medibook/cmd/internal/domain/entity"
	"medibook/cmd/internal/relay"
	"medibook/cmd/internal/utils"
	"medibook/cmd/internal/utils/validators"
)

func testValidator() *validator.Validate {
	validate := validator.New()
	validate.RegisterTagNameFunc(validators.JSONTagName)
	_ = validate.RegisterValidation("hasupper", validators.HasUpper)
	_ = validate.RegisterValidation("haslower", validators.HasLower)
	_ = validate.RegisterValidation("hasdigit", validators.HasDigit)
	_ = validate.RegisterValidation("hasspecial", validators.HasSpecial)
	_ = validate.RegisterValidation("nospaces", validators.NoWhiteSpaces)
	_ = validate.RegisterValidation("dateonly", validators.IsDateOnly)
	_ = validate.RegisterValidation("clocktime", validators.IsClockTime)
	return validate
}

// ---------------------------------------------------------------------------
// In-memory repository fakes
// ---------------------------------------------------------------------------

type fakeUserRepo struct {
	users  map[int]*entity.User
	nextID int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[int]*entity.User), nextID: 1}
}

func (f *fakeUserRepo) FindByID(id int) (*entity.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, nil
	}
	copied := *user
	return &copied, nil
}

func (f *fakeUserRepo) FindByUsername(username string) (*entity.User, error) {
	for _, user := range f.users {
		if user.Username == username {
			copied := *user
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeUserRepo) FindByRole(role string) ([]*entity.User, error) {
	var out []*entity.User
	for _, user := range f.users {
		if user.Role == role {
			copied := *user
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (f *fakeUserRepo) ExistsByUsername(username string) (bool, error) {
	user, _ := f.FindByUsername(username)
	return user != nil, nil
}

func (f *fakeUserRepo) ExistsByEmail(email string) (bool, error) {
	for _, user := range f.users {
		if user.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUserRepo) Save(user *entity.User) error {
	if user.ID == 0 {
		user.ID = f.nextID
		f.nextID++
	}
	copied := *user
	f.users[user.ID] = &copied
	return nil
}

type fakeAppointmentRepo struct {
	appts  map[int]*entity.Appointment
	nextID int
}

func newFakeAppointmentRepo() *fakeAppointmentRepo {
	return &fakeAppointmentRepo{appts: make(map[int]*entity.Appointment), nextID: 1}
}

func (f *fakeAppointmentRepo) Save(appt *entity.Appointment) error {
	if appt.ID == 0 {
		appt.ID = f.nextID
		f.nextID++
	}
	copied := *appt
	f.appts[appt.ID] = &copied
	return nil
}

func (f *fakeAppointmentRepo) FindByID(id int) (*entity.Appointment, error) {
	appt, ok := f.appts[id]
	if !ok {
		return nil, nil
	}
	copied := *appt
	return &copied, nil
}

func (f *fakeAppointmentRepo) FindAll() ([]*entity.Appointment, error) {
	return f.filter(func(*entity.Appointment) bool { return true }), nil
}

func (f *fakeAppointmentRepo) FindByPatientID(id int) ([]*entity.Appointment, error) {
	return f.filter(func(a *entity.Appointment) bool { return a.PatientID == id }), nil
}

func (f *fakeAppointmentRepo) FindByDoctorID(id int) ([]*entity.Appointment, error) {
	return f.filter(func(a *entity.Appointment) bool { return a.DoctorID == id }), nil
}

func (f *fakeAppointmentRepo) IsSlotFree(doctorID int, date, clock string) (bool, error) {
	for _, appt := range f.appts {
		if appt.DoctorID == doctorID && appt.Date == date && appt.Time == clock &&
			appt.Status != entity.StatusCancelled {
			return false, nil
		}
	}
	return true, nil
}

func (f *fakeAppointmentRepo) filter(keep func(*entity.Appointment) bool) []*entity.Appointment {
	var out []*entity.Appointment
	for _, appt := range f.appts {
		if keep(appt) {
			copied := *appt
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ---------------------------------------------------------------------------
// Relay and push fakes
// ---------------------------------------------------------------------------

type fakeBroadcaster struct {
	mu     sync.Mutex
	events []relay.Event
}

func (f *fakeBroadcaster) Publish(event relay.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakeBroadcaster) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

type sentPush struct {
	Title, Body, Token string
}

type fakePush struct {
	mu    sync.Mutex
	sent  []sentPush
	fail  bool
	calls int
}

func (f *fakePush) SendNotification(_ context.Context, title, body, token string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail {
		return "", errors.New("provider unavailable")
	}
	f.sent = append(f.sent, sentPush{Title: title, Body: body, Token: token})
	return "msg-" + strconv.Itoa(f.calls), nil
}

// ---------------------------------------------------------------------------
// Seed helpers
// ---------------------------------------------------------------------------

func seedUser(t *testing.T, repo *fakeUserRepo, username, role string) *entity.User {
	t.Helper()
	now := utils.NowUTC()
	hash, err := auth.HashPassword("Val1d$password")
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	user := &entity.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := repo.Save(user); err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return user
}
