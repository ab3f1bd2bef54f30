package api

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"taskboard-api/domain"
)

// Fixed response messages. Unknown email and wrong password share one message
// so the two failures stay indistinguishable to the caller.
const (
	msgInvalidCredentials = "Invalid credentials"
	msgUnauthorized       = "Unauthorized"
	msgForbidden          = "Forbidden"
	msgTaskNotFound       = "Task not found"
	msgServerError        = "Server error"
	msgMissingFields      = "Title and description are required"
	msgInvalidFields      = "Invalid task fields"
	msgInvalidBody        = "Invalid request body"
	msgLoginOK            = "Login successful"
	msgLogoutOK           = "Logged out"
	msgTaskDeleted        = "Task deleted"
)

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, store Store, sessions Sessions, logger *log.Logger, secureCookies bool) {
	e.POST("/auth/login", login(store, sessions, logger, secureCookies))
	e.POST("/auth/logout", logout(sessions, logger, secureCookies))
	e.GET("/tasks", listTasks(store, sessions, logger))
	e.POST("/tasks", createTask(store, sessions, logger))
	e.PUT("/tasks/:id", updateTask(store, sessions, logger))
	e.DELETE("/tasks/:id", deleteTask(store, sessions, logger))
	e.GET("/healthz", healthz())
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

func decodeBody(c echo.Context, out any) error {
	lr := io.LimitReader(c.Request().Body, requestBodyMaxSize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	return dec.Decode(out)
}

// claimFromRequest resolves the caller identity once; handlers receive the
// resolved claim and never re-derive identity from the request body.
func claimFromRequest(c echo.Context, sessions Sessions) (Claim, error) {
	token, err := tokenFromRequest(c)
	if err != nil {
		return Claim{}, err
	}
	return sessions.ClaimFromToken(c.Request().Context(), token)
}

func login(store Store, sessions Sessions, logger *log.Logger, secure bool) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req loginRequest
		if err := decodeBody(c, &req); err != nil {
			return c.JSON(http.StatusUnauthorized, messageResponse{Message: msgInvalidCredentials})
		}

		user, err := store.GetUserByEmail(c.Request().Context(), req.Email)
		if err != nil {
			if errors.Is(err, domain.ErrUserNotFound) {
				return c.JSON(http.StatusUnauthorized, messageResponse{Message: msgInvalidCredentials})
			}
			logger.WithError(err).Error("login: user lookup failed")
			return c.JSON(http.StatusInternalServerError, messageResponse{Message: msgServerError})
		}

		ok, err := VerifyPassword(user.PasswordHash, req.Password)
		if err != nil {
			logger.WithError(err).Error("login: password verification failed")
			return c.JSON(http.StatusInternalServerError, messageResponse{Message: msgServerError})
		}
		if !ok {
			return c.JSON(http.StatusUnauthorized, messageResponse{Message: msgInvalidCredentials})
		}

		token, err := sessions.Issue(user)
		if err != nil {
			logger.WithError(err).Error("login: token issuance failed")
			return c.JSON(http.StatusInternalServerError, messageResponse{Message: msgServerError})
		}

		setSessionCookie(c, token, secure)
		return c.JSON(http.StatusOK, loginResponse{Message: msgLoginOK, User: user.Profile()})
	}
}

func logout(sessions Sessions, logger *log.Logger, secure bool) echo.HandlerFunc {
	return func(c echo.Context) error {
		// Revocation is best effort: the cookie is cleared and logout
		// succeeds even when the token is already invalid or redis is down.
		if claim, err := claimFromRequest(c, sessions); err == nil {
			if err := sessions.Revoke(c.Request().Context(), claim); err != nil {
				logger.WithError(err).Warn("logout: revocation failed")
			}
		}
		clearSessionCookie(c, secure)
		return c.JSON(http.StatusOK, messageResponse{Message: msgLogoutOK})
	}
}

func listTasks(store Store, sessions Sessions, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newListRequestMetrics(ctx, logger)
		if spanCtx != nil {
			c.SetRequest(c.Request().WithContext(spanCtx))
			ctx = spanCtx
		}
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		authStart := time.Now()
		claim, authErr := claimFromRequest(c, sessions)
		metrics.ObserveAuth(time.Since(authStart))
		if authErr != nil {
			// Listing soft-fails: an unauthenticated caller gets an empty
			// board, never a 401.
			metrics.SetErrorStage("auth")
			err = c.JSON(http.StatusOK, tasksResponse{Tasks: []domain.Task{}})
			return err
		}

		fetchStart := time.Now()
		tasks, fetchErr := store.ListByOwner(ctx, claim.UserID)
		metrics.ObserveFetch(time.Since(fetchStart))
		if fetchErr != nil {
			metrics.SetErrorStage("storage")
			logger.WithError(fetchErr).Error("list: fetch failed")
			err = c.JSON(http.StatusInternalServerError, messageResponse{Message: msgServerError})
			return err
		}
		metrics.SetTasksReturned(len(tasks))

		encodeStart := time.Now()
		err = c.JSON(http.StatusOK, tasksResponse{Tasks: tasks})
		metrics.ObserveEncode(time.Since(encodeStart))
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

func createTask(store Store, sessions Sessions, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		claim, err := claimFromRequest(c, sessions)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, messageResponse{Message: msgUnauthorized})
		}

		var req createTaskRequest
		if err := decodeBody(c, &req); err != nil {
			return c.JSON(http.StatusBadRequest, messageResponse{Message: msgInvalidBody})
		}
		if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Description) == "" {
			return c.JSON(http.StatusBadRequest, messageResponse{Message: msgMissingFields})
		}

		task, err := store.CreateTask(c.Request().Context(), claim.UserID, req.Title, req.Description, req.Priority)
		if err != nil {
			logger.WithError(err).Error("create: persist failed")
			return c.JSON(http.StatusInternalServerError, messageResponse{Message: msgServerError})
		}
		return c.JSON(http.StatusCreated, taskResponse{Task: task})
	}
}

func validatePatch(p domain.TaskPatch) bool {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return false
	}
	if p.Description != nil && strings.TrimSpace(*p.Description) == "" {
		return false
	}
	if p.Status != nil && !p.Status.Valid() {
		return false
	}
	if p.Priority != nil && !p.Priority.Valid() {
		return false
	}
	return true
}

func updateTask(store Store, sessions Sessions, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		claim, err := claimFromRequest(c, sessions)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, messageResponse{Message: msgUnauthorized})
		}

		var patch domain.TaskPatch
		if err := decodeBody(c, &patch); err != nil {
			return c.JSON(http.StatusBadRequest, messageResponse{Message: msgInvalidBody})
		}
		if !validatePatch(patch) {
			return c.JSON(http.StatusBadRequest, messageResponse{Message: msgInvalidFields})
		}

		ctx := c.Request().Context()
		id := c.Param("id")

		// Existence before ownership: a missing task is a 404 even for a
		// caller who could never have owned it.
		existing, err := store.GetTaskByID(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrTaskNotFound) {
				return c.JSON(http.StatusNotFound, messageResponse{Message: msgTaskNotFound})
			}
			logger.WithError(err).Error("update: lookup failed")
			return c.JSON(http.StatusInternalServerError, messageResponse{Message: msgServerError})
		}
		if existing.UserID != claim.UserID {
			return c.JSON(http.StatusForbidden, messageResponse{Message: msgForbidden})
		}

		updated, err := store.UpdateTask(ctx, existing.UserID, id, patch)
		if err != nil {
			if errors.Is(err, domain.ErrTaskNotFound) {
				return c.JSON(http.StatusNotFound, messageResponse{Message: msgTaskNotFound})
			}
			logger.WithError(err).Error("update: persist failed")
			return c.JSON(http.StatusInternalServerError, messageResponse{Message: msgServerError})
		}
		return c.JSON(http.StatusOK, taskResponse{Task: updated})
	}
}

func deleteTask(store Store, sessions Sessions, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		claim, err := claimFromRequest(c, sessions)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, messageResponse{Message: msgUnauthorized})
		}

		ctx := c.Request().Context()
		id := c.Param("id")

		existing, err := store.GetTaskByID(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrTaskNotFound) {
				return c.JSON(http.StatusNotFound, messageResponse{Message: msgTaskNotFound})
			}
			logger.WithError(err).Error("delete: lookup failed")
			return c.JSON(http.StatusInternalServerError, messageResponse{Message: msgServerError})
		}
		if existing.UserID != claim.UserID {
			return c.JSON(http.StatusForbidden, messageResponse{Message: msgForbidden})
		}

		if err := store.DeleteTask(ctx, existing.UserID, id); err != nil {
			if errors.Is(err, domain.ErrTaskNotFound) {
				return c.JSON(http.StatusNotFound, messageResponse{Message: msgTaskNotFound})
			}
			logger.WithError(err).Error("delete: persist failed")
			return c.JSON(http.StatusInternalServerError, messageResponse{Message: msgServerError})
		}
		return c.JSON(http.StatusOK, messageResponse{Message: msgTaskDeleted})
	}
}
