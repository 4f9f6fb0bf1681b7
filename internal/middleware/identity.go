package middleware

// identity.go holds the context keys the session middleware writes and the
// accessors handlers and other middleware read them through.

import (
    "strconv"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/user-auth/internal/utils"
)

const (
    ctxUserID = "user_id"
    ctxEmail  = "email"
    ctxRole   = "role"
)

func setIdentity(c echo.Context, claims *utils.SessionClaims) {
    c.Set(ctxUserID, claims.UserID)
    c.Set(ctxEmail, claims.Email)
    c.Set(ctxRole, claims.Role)
}

// UserID returns the authenticated user's id, if any.
func UserID(c echo.Context) (uint64, bool) {
    id, ok := c.Get(ctxUserID).(uint64)
    return id, ok && id != 0
}

// Role returns the authenticated user's role, if any.
func Role(c echo.Context) (string, bool) {
    r, ok := c.Get(ctxRole).(string)
    return r, ok && r != ""
}

// currentUserID is the rate-limit key component: the user id or "anon".
func currentUserID(c echo.Context) string {
    if id, ok := UserID(c); ok {
        return strconv.FormatUint(id, 10)
    }
    return "anon"
}
