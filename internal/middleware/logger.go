package middleware

import (
    "github.com/labstack/echo/v4"
    echomw "github.com/labstack/echo/v4/middleware"

    "github.com/iliyamo/user-auth/internal/logging"
)

// RequestLogger writes one structured line per request.  Server errors log
// at error level, client errors at warn.
func RequestLogger(log logging.Logger) echo.MiddlewareFunc {
    log = log.With("component", "http")
    return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
        LogMethod:    true,
        LogURI:       true,
        LogStatus:    true,
        LogLatency:   true,
        LogRemoteIP:  true,
        LogRequestID: true,
        LogError:     true,
        HandleError:  true,
        LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
            args := []any{
                "method", v.Method,
                "uri", v.URI,
                "status", v.Status,
                "latency", v.Latency.String(),
                "remote_ip", v.RemoteIP,
                "request_id", v.RequestID,
            }
            if v.Error != nil {
                args = append(args, "err", v.Error)
            }
            ctx := c.Request().Context()
            switch {
            case v.Status >= 500:
                log.Error(ctx, "request", args...)
            case v.Status >= 400:
                log.Warn(ctx, "request", args...)
            default:
                log.Info(ctx, "request", args...)
            }
            return nil
        },
    })
}
