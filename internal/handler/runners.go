package handler

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/savefuksd/forgeci/internal/service"
)

func SetupRunnerRoutes(g *echo.Group, runnerService service.RunnerServicer) {
	h := NewRunnerHandler(runnerService)
	g.POST("/runners", h.PostRunner)
	g.GET("/runners", h.GetRunners)
	g.GET("/runners/:runner_id", h.GetRunner)
	g.PATCH("/runners/:runner_id", h.PatchRunner)
	g.DELETE("/runners/:runner_id", h.DeleteRunner)
	g.POST("/runners/:runner_id/test", h.PostTestRunnerConnection)
}

type RunnerHandler struct {
	runnerService service.RunnerServicer
}

func NewRunnerHandler(runnerService service.RunnerServicer) *RunnerHandler {
	return &RunnerHandler{runnerService: runnerService}
}

func (h *RunnerHandler) PostRunner(c echo.Context) error {
	rp := new(RunnerParams)
	if err := c.Bind(rp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid runner data")
	}
	if rp.Name == "" || rp.Hostname == "" || rp.Username == "" || rp.SSHPrivateKey == "" {
		return newError(nil, http.StatusBadRequest,
			"name, hostname, username and ssh_private_key are required")
	}

	r, err := h.runnerService.CreateRunner(
		c.Request().Context(),
		rp.Name, rp.Description, rp.Hostname, rp.Username,
		rp.Workspace, rp.CacheDir, rp.OSType, rp.SSHPrivateKey,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return newError(err, http.StatusConflict, "a runner with this name already exists")
		}
		return newError(err, http.StatusInternalServerError, "unable to create runner")
	}

	return c.JSON(http.StatusCreated, toRunnerResponse(r))
}

func (h *RunnerHandler) GetRunners(c echo.Context) error {
	runners, err := h.runnerService.ListRunners(c.Request().Context())
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return newError(err, http.StatusInternalServerError, "unable to list runners")
	}

	out := make([]RunnerResponse, len(runners))
	for i, r := range runners {
		out[i] = toRunnerResponse(r)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *RunnerHandler) GetRunner(c echo.Context) error {
	rp := new(RunnerParams)
	if err := c.Bind(rp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid runner ID")
	}

	r, err := h.runnerService.GetRunnerByID(c.Request().Context(), rp.RunnerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return newError(err, http.StatusNotFound, "runner not found")
		}
		return newError(err, http.StatusInternalServerError, "unable to read runner")
	}

	return c.JSON(http.StatusOK, toRunnerResponse(r))
}

func (h *RunnerHandler) PatchRunner(c echo.Context) error {
	rp := new(RunnerParams)
	if err := c.Bind(rp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid runner data")
	}

	if err := h.runnerService.UpdateRunner(
		c.Request().Context(),
		rp.RunnerID,
		rp.Name, rp.Description, rp.Hostname, rp.Username,
		rp.Workspace, rp.CacheDir, rp.OSType,
	); err != nil {
		if isUniqueConstraintError(err) {
			return newError(err, http.StatusConflict, "a runner with this name already exists")
		}
		return newError(err, http.StatusInternalServerError, "unable to update runner")
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *RunnerHandler) DeleteRunner(c echo.Context) error {
	rp := new(RunnerParams)
	if err := c.Bind(rp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid runner ID")
	}

	if err := h.runnerService.DeleteRunner(c.Request().Context(), rp.RunnerID); err != nil {
		if isForeignKeyConstraintError(err) {
			return newError(err, http.StatusConflict,
				"runner is still referenced by one or more pipelines")
		}
		return newError(err, http.StatusInternalServerError, "unable to delete runner")
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *RunnerHandler) PostTestRunnerConnection(c echo.Context) error {
	rp := new(RunnerParams)
	if err := c.Bind(rp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid runner ID")
	}

	if err := h.runnerService.TestRunnerConnection(
		c.Request().Context(), rp.RunnerID,
	); err != nil {
		return newError(err, http.StatusBadGateway, "unable to connect to runner")
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
