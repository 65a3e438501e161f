package service

import (
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/gommon/log"

	"medibook/cmd/internal/auth"
	"medibook/cmd/internal/domain/entity"
	"medibook/cmd/internal/utils"
	"medibook/cmd/internal/utils/apierror"
)

type UserRepository interface {
	FindByID(id int) (*entity.User, error)
	FindByUsername(username string) (*entity.User, error)
	FindByRole(role string) ([]*entity.User, error)
	ExistsByUsername(username string) (bool, error)
	ExistsByEmail(email string) (bool, error)
	Save(user *entity.User) error
}

type RegisterRequest struct {
	Username    string `json:"username" validate:"required,min=2,max=80,nospaces"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8,max=64,hasspecial,hasdigit,hasupper,haslower"`
	Role        string `json:"role" validate:"required,oneof=admin doctor patient"`
	DeviceToken string `json:"device_token" validate:"max=512"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type RefreshRequest struct {
	Refresh string `json:"refresh" validate:"required"`
}

type RegisterDeviceRequest struct {
	DeviceToken string `json:"device_token" validate:"required,max=512"`
}

type UserResponse struct {
	ID        int    `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type DefaultUserService struct {
	UserRepo UserRepository
	Validate *validator.Validate
	Auth     *auth.Authenticator
}

func NewUserService(userRepo UserRepository, validate *validator.Validate, authn *auth.Authenticator) *DefaultUserService {
	return &DefaultUserService{UserRepo: userRepo, Validate: validate, Auth: authn}
}

// Register creates an account with a bcrypt-hashed password. The clear
// text password never reaches the store.
func (u *DefaultUserService) Register(req *RegisterRequest) (*UserResponse, apierror.ErrorResponse) {
	utils.Sanitize(req)
	if err := u.Validate.Struct(req); err != nil {
		return nil, apierror.FromValidationError(err)
	}

	taken, err := u.UserRepo.ExistsByUsername(req.Username)
	if err != nil {
		log.Errorf("failed to check if username is taken: %v", err)
		return nil, apierror.InternalServerError
	}
	if taken {
		return nil, apierror.NewFieldError("username", "a user with this username already exists")
	}

	taken, err = u.UserRepo.ExistsByEmail(req.Email)
	if err != nil {
		log.Errorf("failed to check if email is taken: %v", err)
		return nil, apierror.InternalServerError
	}
	if taken {
		return nil, apierror.NewFieldError("email", "a user with this email already exists")
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		log.Errorf("failed to hash password: %v", err)
		return nil, apierror.InternalServerError
	}

	now := utils.NowUTC()
	user := &entity.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         req.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if req.DeviceToken != "" {
		user.DeviceToken = &req.DeviceToken
	}

	err = u.UserRepo.Save(user)
	if err != nil {
		log.Errorf("failed to create user: %v", err)
		return nil, apierror.InternalServerError
	}
	return toUserResponse(user), nil
}

// Login verifies the password hash and issues a fresh credential pair.
// Unknown username and wrong password produce the same response.
func (u *DefaultUserService) Login(req *LoginRequest) (*auth.TokenPair, apierror.ErrorResponse) {
	utils.Sanitize(req)
	if err := u.Validate.Struct(req); err != nil {
		return nil, apierror.FromValidationError(err)
	}

	user, err := u.UserRepo.FindByUsername(req.Username)
	if err != nil {
		log.Errorf("failed to fetch user from database: %v", err)
		return nil, apierror.InternalServerError
	}

	if user == nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		return nil, apierror.InvalidCredentialsError
	}

	pair, err := u.Auth.MintPair(strconv.Itoa(user.ID), user.Role)
	if err != nil {
		log.Errorf("failed to mint token pair for user %d: %v", user.ID, err)
		return nil, apierror.InternalServerError
	}
	return pair, nil
}

// Refresh mints a new credential pair from a still-valid refresh token.
func (u *DefaultUserService) Refresh(req *RefreshRequest) (*auth.TokenPair, apierror.ErrorResponse) {
	if err := u.Validate.Struct(req); err != nil {
		return nil, apierror.FromValidationError(err)
	}

	claims, err := u.Auth.ParseRefresh(req.Refresh)
	if err != nil {
		return nil, apierror.InvalidAuthTokenError
	}

	user, apierr := u.fetchBySubject(claims.Subject)
	if apierr != nil {
		return nil, apierr
	}

	pair, err := u.Auth.MintPair(strconv.Itoa(user.ID), user.Role)
	if err != nil {
		log.Errorf("failed to mint token pair for user %d: %v", user.ID, err)
		return nil, apierror.InternalServerError
	}
	return pair, nil
}

// GetDoctors returns the doctor directory.
func (u *DefaultUserService) GetDoctors() ([]*UserResponse, apierror.ErrorResponse) {
	doctors, err := u.UserRepo.FindByRole(entity.RoleDoctor)
	if err != nil {
		log.Errorf("failed to fetch doctors: %v", err)
		return nil, apierror.InternalServerError
	}

	resp := make([]*UserResponse, len(doctors))
	for i, doctor := range doctors {
		resp[i] = toUserResponse(doctor)
	}
	return resp, nil
}

// RegisterDevice stores the caller's push device token.
func (u *DefaultUserService) RegisterDevice(req *RegisterDeviceRequest, subject string) apierror.ErrorResponse {
	utils.Sanitize(req)
	if err := u.Validate.Struct(req); err != nil {
		return apierror.FromValidationError(err)
	}

	user, apierr := u.fetchBySubject(subject)
	if apierr != nil {
		return apierr
	}

	user.DeviceToken = &req.DeviceToken
	user.UpdatedAt = utils.NowUTC()

	err := u.UserRepo.Save(user)
	if err != nil {
		log.Errorf("failed to update device token for user %d: %v", user.ID, err)
		return apierror.InternalServerError
	}
	return nil
}

func (u *DefaultUserService) fetchBySubject(subject string) (*entity.User, apierror.ErrorResponse) {
	userID, err := strconv.Atoi(subject)
	if err != nil {
		return nil, apierror.InvalidAuthTokenError
	}

	user, err := u.UserRepo.FindByID(userID)
	if err != nil {
		log.Errorf("failed to find user (%s) by id: %v", subject, err)
		return nil, apierror.InternalServerError
	}

	if user == nil {
		return nil, apierror.InvalidAuthTokenError
	}
	return user, nil
}

func toUserResponse(user *entity.User) *UserResponse {
	return &UserResponse{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		Role:      user.Role,
		CreatedAt: utils.FormatEpoch(user.CreatedAt),
		UpdatedAt: utils.FormatEpoch(user.UpdatedAt),
	}
}
