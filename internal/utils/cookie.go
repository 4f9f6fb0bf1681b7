package utils

import (
    "net/http"
    "time"
)

// TokenCookieName is the cookie carrying the session token.
const TokenCookieName = "token"

// CookieOptions holds the deployment-dependent cookie attributes.
type CookieOptions struct {
    Secure bool
    Domain string
}

// SetTokenCookie attaches the session token as an HttpOnly cookie that
// expires with the token.
func SetTokenCookie(w http.ResponseWriter, opts CookieOptions, tok SessionToken) {
    maxAge := int(time.Until(tok.Exp).Seconds())
    if maxAge < 1 {
        maxAge = 1
    }
    http.SetCookie(w, &http.Cookie{
        Name:     TokenCookieName,
        Value:    tok.Token,
        Path:     "/",
        Domain:   opts.Domain,
        HttpOnly: true,
        Secure:   opts.Secure,
        SameSite: http.SameSiteStrictMode,
        Expires:  tok.Exp,
        MaxAge:   maxAge,
    })
}

// ClearTokenCookie expires the session cookie on the client.
func ClearTokenCookie(w http.ResponseWriter, opts CookieOptions) {
    http.SetCookie(w, &http.Cookie{
        Name:     TokenCookieName,
        Value:    "",
        Path:     "/",
        Domain:   opts.Domain,
        HttpOnly: true,
        Secure:   opts.Secure,
        SameSite: http.SameSiteStrictMode,
        MaxAge:   -1,
    })
}
