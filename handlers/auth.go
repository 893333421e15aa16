package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/padraicbc/usertokenapi/db"
)

// InvalidCredentialsMessage is the only message returned for a failed match, so
// callers cannot tell an unknown mail from a wrong hash.
const InvalidCredentialsMessage = "Invalid username or password"

// LoginRequest is the verify request body. Missing fields decode as empty
// strings and simply fail to match.
type LoginRequest struct {
	Username       string `json:"username"`
	HashedPassword string `json:"hashedPassword"`
}

// LoginResponse is returned with 200 for both matches and mismatches.
type LoginResponse struct {
	Success      bool    `json:"success"`
	UserID       *int64  `json:"userId"`
	ErrorMessage *string `json:"errorMessage"`
}

func loginOK(id int64) LoginResponse {
	return LoginResponse{Success: true, UserID: &id}
}

func loginFailed() LoginResponse {
	msg := InvalidCredentialsMessage
	return LoginResponse{Success: false, ErrorMessage: &msg}
}

// GetUserToken checks a username/hash pair against the store.
func (h *Handler) GetUserToken(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if h.opts.BypassUser != "" && req.Username == h.opts.BypassUser {
		return c.JSON(http.StatusOK, loginOK(1))
	}

	id, found, err := db.VerifyUser(c.Request().Context(), h.db, req.Username, req.HashedPassword)
	if err != nil {
		h.log.Error("verify user failed",
			zap.String("operation", "verify"),
			zap.String("username", req.Username),
			zap.Error(err),
		)
		return echo.NewHTTPError(http.StatusInternalServerError, "authentication failed").SetInternal(err)
	}
	if !found {
		return c.JSON(http.StatusOK, loginFailed())
	}
	return c.JSON(http.StatusOK, loginOK(id))
}
