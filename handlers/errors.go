package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const genericServerError = "internal server error"

// ErrorHandler renders every error as {"error": msg}. Messages of
// *echo.HTTPError values are public. The Internal cause of a 5xx
// HTTPError and any other error are logged and never sent to the client.
func ErrorHandler(log *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		msg := genericServerError

		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if m, ok := he.Message.(string); ok {
				msg = m
			} else {
				msg = http.StatusText(code)
			}
			if code >= http.StatusInternalServerError && he.Internal != nil {
				log.Error("request failed",
					zap.Int("status", code),
					zap.String("method", c.Request().Method),
					zap.String("uri", c.Request().RequestURI),
					zap.Error(he.Internal),
				)
			}
		} else {
			log.Error("unhandled error",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Error(err),
			)
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, map[string]string{"error": msg})
		}
		if err != nil {
			log.Error("write error response", zap.Error(err))
		}
	}
}
