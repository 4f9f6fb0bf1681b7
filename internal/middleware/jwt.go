package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/user-auth/internal/utils"
)

// Session returns an Echo middleware that requires a valid session token,
// taken from the `token` cookie or, failing that, an `Authorization: Bearer`
// header.  On success the token's id, email and role are stored in the
// request context (see UserID and Role).
func Session(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            raw := tokenFromRequest(c)
            if raw == "" {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
            }
            claims, err := utils.ParseSessionToken(secret, raw)
            if err != nil {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
            }
            setIdentity(c, claims)
            return next(c)
        }
    }
}

func tokenFromRequest(c echo.Context) string {
    if ck, err := c.Cookie(utils.TokenCookieName); err == nil && ck.Value != "" {
        return ck.Value
    }
    auth := c.Request().Header.Get("Authorization")
    if strings.HasPrefix(auth, "Bearer ") {
        return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
    }
    return ""
}
