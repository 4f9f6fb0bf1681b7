package handler

import (
    "errors"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/user-auth/internal/logging"
)

// ErrorHandler is the catch-all for errors handlers return instead of
// answering themselves.  Echo's own HTTP errors (unknown route, wrong
// method) keep their status; anything else is logged and reported as a bare
// 500 so internals never reach the client.
func ErrorHandler(log logging.Logger) echo.HTTPErrorHandler {
    if log == nil {
        log = logging.Nop()
    }
    return func(err error, c echo.Context) {
        if c.Response().Committed {
            return
        }
        var he *echo.HTTPError
        if errors.As(err, &he) {
            msg, ok := he.Message.(string)
            if !ok {
                msg = http.StatusText(he.Code)
            }
            _ = respond(c, he.Code, msg)
            return
        }
        log.Error(c.Request().Context(), "unhandled error",
            "method", c.Request().Method, "path", c.Path(), "err", err)
        _ = respond(c, http.StatusInternalServerError, "Internal server error")
    }
}

func respond(c echo.Context, code int, msg string) error {
    if c.Request().Method == http.MethodHead {
        return c.NoContent(code)
    }
    return c.JSON(code, echo.Map{"error": msg})
}
