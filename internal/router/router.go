package router // package router builds the Echo instance and registers the HTTP routes

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/user-auth/internal/handler"
	"github.com/iliyamo/user-auth/internal/logging"
	"github.com/iliyamo/user-auth/internal/middleware"
	"github.com/iliyamo/user-auth/internal/model"
	"github.com/iliyamo/user-auth/internal/validation"
)

// Options carries the cross-cutting pieces New installs.
type Options struct {
	JWTSecret string
	// RateLimit guards the credential endpoints; nil means no limit.
	RateLimit echo.MiddlewareFunc
	Log       logging.Logger
}

// New returns an Echo instance with validation, error handling, request IDs,
// access logging and every route registered.
func New(a *handler.AuthHandler, opts Options) *echo.Echo {
	log := opts.Log
	if log == nil {
		log = logging.Nop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validation.New()
	e.HTTPErrorHandler = handler.ErrorHandler(log)
	e.IPExtractor = echo.ExtractIPFromXFFHeader()

	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(middleware.RequestLogger(log))
	e.Use(echomw.Recover())
	e.Use(echomw.BodyLimit("64K"))

	RegisterRoutes(e)
	RegisterAuth(e, a, opts.JWTSecret, opts.RateLimit)
	return e
}

// RegisterRoutes registers routes that do not require authentication and
// are not auth operations.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the authentication routes.  Credential endpoints
// live under /api/auth behind the optional rate limiter; /signup is kept as
// an alias of sign-up.  Session-protected endpoints live under /api/users.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	var guard []echo.MiddlewareFunc
	if limit != nil {
		guard = append(guard, limit)
	}

	g := e.Group("/api/auth")
	g.POST("/sign-up", a.SignUp, guard...)
	g.POST("/sign-in", a.SignIn, guard...)
	g.POST("/sign-out", a.SignOut)
	e.POST("/signup", a.SignUp, guard...)

	users := e.Group("/api/users")
	users.Use(middleware.Session(jwtSecret))
	users.Use(middleware.RequireRole(model.RoleUser, model.RoleAdmin))
	users.GET("/me", a.Me)
}
