package handler

import (
    "context"  // provides context with cancellation for DB calls
    "errors"   // errors.Is for service outcomes
    "net/http" // HTTP status codes and primitives
    "time"     // timeouts for DB calls

    "github.com/labstack/echo/v4" // Echo framework for HTTP routing

    "github.com/iliyamo/user-auth/internal/logging"    // structured logger
    "github.com/iliyamo/user-auth/internal/middleware" // session identity accessors
    "github.com/iliyamo/user-auth/internal/model"      // public user projection
    "github.com/iliyamo/user-auth/internal/service"    // auth service
    "github.com/iliyamo/user-auth/internal/utils"      // session token and cookie helpers
    "github.com/iliyamo/user-auth/internal/validation" // request schemas
)

const requestTimeout = 5 * time.Second

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
    Auth      *service.AuthService
    Log       logging.Logger
    JWTSecret string
    TokenTTL  time.Duration
    Cookie    utils.CookieOptions
}

func NewAuthHandler(auth *service.AuthService, log logging.Logger, jwtSecret string, ttl time.Duration, cookie utils.CookieOptions) *AuthHandler {
    if log == nil {
        log = logging.Nop()
    }
    return &AuthHandler{Auth: auth, Log: log.With("component", "auth_handler"), JWTSecret: jwtSecret, TokenTTL: ttl, Cookie: cookie}
}

// ----- DTOs -----

type userPart struct {
    ID    uint64 `json:"id"`
    Name  string `json:"name"`
    Email string `json:"email"`
    Role  string `json:"role"`
}

type authResp struct {
    Message string   `json:"message"`
    User    userPart `json:"user"`
}

type validationResp struct {
    Error   string                  `json:"error"`
    Details []validation.FieldError `json:"details"`
}

func toUserPart(u model.PublicUser) userPart {
    return userPart{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

func validationFailed(c echo.Context, err error) error {
    return c.JSON(http.StatusBadRequest, validationResp{Error: "Validation failed", Details: validation.Details(err)})
}

func invalidBody(c echo.Context) error {
    return c.JSON(http.StatusBadRequest, validationResp{
        Error:   "Validation failed",
        Details: []validation.FieldError{{Message: "request body must be a JSON object"}},
    })
}

// SignUp: validate, create the user, set the session cookie.
func (h *AuthHandler) SignUp(c echo.Context) error {
    var req validation.SignUpRequest
    if err := c.Bind(&req); err != nil {
        return invalidBody(c)
    }
    req.Normalize()
    if err := c.Validate(&req); err != nil {
        return validationFailed(c, err)
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()

    u, err := h.Auth.CreateUser(ctx, service.NewUser{
        Name:     req.Name,
        Email:    req.Email,
        Password: req.Password,
        Role:     req.Role,
    })
    if err != nil {
        h.Log.Error(ctx, "Sign Up Error", "email", req.Email, "err", err)
        if errors.Is(err, service.ErrAlreadyExists) {
            return c.JSON(http.StatusConflict, echo.Map{"error": "User already exists"})
        }
        return err
    }

    if err := h.startSession(c, u); err != nil {
        return err
    }

    h.Log.Info(ctx, "User Registered successfully with: "+u.Email, "user_id", u.ID, "email", u.Email)
    return c.JSON(http.StatusCreated, authResp{Message: "User Registered", User: toUserPart(u)})
}

// SignIn: verify credentials and set a fresh session cookie.
func (h *AuthHandler) SignIn(c echo.Context) error {
    var req validation.SignInRequest
    if err := c.Bind(&req); err != nil {
        return invalidBody(c)
    }
    req.Normalize()
    if err := c.Validate(&req); err != nil {
        return validationFailed(c, err)
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()

    u, err := h.Auth.AuthenticateUser(ctx, service.Credentials{Email: req.Email, Password: req.Password})
    if err != nil {
        if errors.Is(err, service.ErrInvalidCredentials) {
            h.Log.Warn(ctx, "Sign In rejected", "email", req.Email)
            return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Invalid email or password"})
        }
        h.Log.Error(ctx, "Sign In Error", "email", req.Email, "err", err)
        return err
    }

    if err := h.startSession(c, u); err != nil {
        return err
    }

    h.Log.Info(ctx, "User signed in successfully with: "+u.Email, "user_id", u.ID, "email", u.Email)
    return c.JSON(http.StatusOK, authResp{Message: "User signed in successfully", User: toUserPart(u)})
}

// SignOut: expire the session cookie. Tokens are stateless, so there is
// nothing to revoke server-side.
func (h *AuthHandler) SignOut(c echo.Context) error {
    utils.ClearTokenCookie(c.Response(), h.Cookie)
    h.Log.Info(c.Request().Context(), "User signed out")
    return c.JSON(http.StatusOK, echo.Map{"message": "User signed out successfully"})
}

// Me returns the user behind the current session (protected).
func (h *AuthHandler) Me(c echo.Context) error {
    id, ok := middleware.UserID(c)
    if !ok {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()

    u, err := h.Auth.GetUser(ctx, id)
    if err != nil {
        if errors.Is(err, service.ErrUserNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "User not found"})
        }
        return err
    }
    return c.JSON(http.StatusOK, echo.Map{"user": u})
}

func (h *AuthHandler) startSession(c echo.Context, u model.PublicUser) error {
    tok, err := utils.NewSessionToken(h.JWTSecret, u, h.TokenTTL)
    if err != nil {
        return err
    }
    utils.SetTokenCookie(c.Response(), h.Cookie, tok)
    return nil
}
