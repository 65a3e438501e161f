package main

import (
	"context"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"medibook/cmd/internal/auth"
	"medibook/cmd/internal/domain/sqlite"
	"medibook/cmd/internal/domain/sqlite/repository"
	"medibook/cmd/internal/integration/fcm"
	"medibook/cmd/internal/relay"
	"medibook/cmd/internal/routes"
	"medibook/cmd/internal/service"
	"medibook/cmd/internal/utils/validators"
)

func main() {
	validate := validator.New()
	registerValidators(validate)

	// Missing .env is fine in deployments that set real env vars.
	_ = godotenv.Load()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET is required")
	}
	authn := auth.NewAuthenticator(secret, 15*time.Minute, 7*24*time.Hour)

	// Init SQLite
	db, err := sqlite.Init(envOr("DB_PATH", "./database.db"))
	if err != nil {
		log.Fatal("failed to initialize database", err)
	}

	// FCM client, created once and reused for the process lifetime.
	// Push delivery is optional: without credentials it is disabled.
	var push fcm.SenderInterface
	if credsFile := os.Getenv("FCM_CREDENTIALS_FILE"); credsFile != "" {
		client, err := fcm.InitFCMClient(context.Background(), credsFile)
		if err != nil {
			log.Fatal("failed to initialize fcm client", err)
		}
		push = client
	} else {
		log.Warn("FCM_CREDENTIALS_FILE not set, push notifications disabled")
	}

	// Broadcast group for appointment updates
	group := relay.NewGroup()

	// Getting repositories
	userRepo := repository.NewUserRepository(db)
	apptRepo := repository.NewAppointmentRepository(db)

	// Getting services
	userService := service.NewUserService(userRepo, validate, authn)
	apptService := service.NewAppointmentService(apptRepo, userRepo, validate, group, push)

	// Getting routes
	userRoutes := routes.NewUserDefault(userService)
	apptRoutes := routes.NewAppointmentDefault(apptService)
	wsRoutes := relay.NewHandler(group)

	e := echo.New()
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.CORS())

	authed := auth.Middleware(authn)

	// Accounts
	e.POST("/register", userRoutes.Register)
	e.POST("/login", userRoutes.Login)
	e.POST("/token/refresh", userRoutes.Refresh)
	e.POST("/devices", userRoutes.RegisterDevice, authed)

	// Doctor directory
	e.GET("/doctors", userRoutes.GetDoctors)

	// Appointments
	e.GET("/appointments", apptRoutes.GetAppointments, authed)
	e.POST("/appointments", apptRoutes.CreateAppointment, authed)
	e.PATCH("/appointments/:id/status", apptRoutes.UpdateStatus, authed)

	// Real-time appointment updates
	e.GET("/ws/appointments", wsRoutes.HandleAppointments, authed)

	err = e.Start(":" + envOr("PORT", "8000"))
	if err != nil {
		e.Logger.Fatal(err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func registerValidators(validate *validator.Validate) {
	validate.RegisterTagNameFunc(validators.JSONTagName)
	_ = validate.RegisterValidation("hasupper", validators.HasUpper)
	_ = validate.RegisterValidation("haslower", validators.HasLower)
	_ = validate.RegisterValidation("hasdigit", validators.HasDigit)
	_ = validate.RegisterValidation("hasspecial", validators.HasSpecial)
	_ = validate.RegisterValidation("nospaces", validators.NoWhiteSpaces)
	_ = validate.RegisterValidation("dateonly", validators.IsDateOnly)
	_ = validate.RegisterValidation("clocktime", validators.IsClockTime)
}
