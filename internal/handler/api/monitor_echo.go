package api

import (
	"context"
	"errors"
	"net/http"

	models "SignalPulse/internal/domain/models"
	domrepo "SignalPulse/internal/domain/repository"
	"SignalPulse/internal/usecase"
	xhttp "SignalPulse/pkg/http"
	xlogger "SignalPulse/pkg/logger"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// MonitorEchoHandler exposes the status surface, signal administration and loop control.
type MonitorEchoHandler struct {
	logger  *xlogger.Logger
	engine  *usecase.Engine
	admin   *usecase.SignalAdmin
	history domrepo.FireHistory
}

func NewMonitorEchoHandler(logger *xlogger.Logger, engine *usecase.Engine, admin *usecase.SignalAdmin, history domrepo.FireHistory) *MonitorEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &MonitorEchoHandler{logger: logger, engine: engine, admin: admin, history: history}
}

func (h *MonitorEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/status", h.Status)

	g.GET("/signals", h.ListSignals)
	g.PUT("/signals", h.ReplaceSignals)
	g.POST("/signals", h.AddSignal)
	g.DELETE("/signals", h.RemoveSignal)
	g.PUT("/antidelay", h.SetAntidelay)
	g.GET("/fires", h.Fires)

	g.POST("/monitors/:id/start", h.StartMonitor)
	g.POST("/monitors/:id/stop", h.StopMonitor)
	g.POST("/monitors/:id/wake", h.WakeMonitor)
	g.POST("/wake", h.Wake)
}

type signalsResponse struct {
	Signals          []models.Signal `json:"signals"`
	AntidelaySeconds int             `json:"antidelay_seconds"`
}

type monitorResponse struct {
	InstanceID string `json:"instance_id"`
	Running    bool   `json:"running"`
	OwnerID    string `json:"owner_id,omitempty"`
}

func (h *MonitorEchoHandler) Status(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.engine.Status())
}

func (h *MonitorEchoHandler) ListSignals(c echo.Context) error {
	signals, antidelay, err := h.admin.List(c.Request().Context())
	if err != nil {
		return h.fail(c, "list signals", err)
	}
	if signals == nil {
		signals = []models.Signal{}
	}
	return xhttp.SuccessResponse(c, signalsResponse{Signals: signals, AntidelaySeconds: antidelay})
}

func (h *MonitorEchoHandler) ReplaceSignals(c echo.Context) error {
	req := &models.ReplaceSignalsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	incoming := make([]models.Signal, 0, len(req.Signals))
	for _, s := range req.Signals {
		incoming = append(incoming, s.Signal())
	}
	stored, err := h.admin.Replace(c.Request().Context(), incoming)
	if err != nil {
		return h.fail(c, "replace signals", err)
	}
	return xhttp.ListResponse(c, stored, int64(len(stored)))
}

func (h *MonitorEchoHandler) AddSignal(c echo.Context) error {
	req := &models.SignalRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	sig := req.Signal()
	if err := h.admin.Add(c.Request().Context(), sig); err != nil {
		return h.fail(c, "add signal", err)
	}
	return xhttp.CreatedResponse(c, sig)
}

func (h *MonitorEchoHandler) RemoveSignal(c echo.Context) error {
	req := &models.RemoveSignalRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.admin.Remove(c.Request().Context(), models.SignalKey(req.Timestamp, req.Asset, req.Direction)); err != nil {
		return h.fail(c, "remove signal", err)
	}
	return xhttp.NoContentResponse(c)
}

func (h *MonitorEchoHandler) SetAntidelay(c echo.Context) error {
	req := &models.AntidelayRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	stored, err := h.admin.SetAntidelay(c.Request().Context(), *req.Seconds)
	if err != nil {
		return h.fail(c, "set antidelay", err)
	}
	return xhttp.SuccessResponse(c, map[string]int{"antidelay_seconds": stored})
}

func (h *MonitorEchoHandler) Fires(c echo.Context) error {
	req := &models.FiresRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	events, err := h.history.Recent(c.Request().Context(), req.Limit)
	if err != nil {
		return h.fail(c, "fire history", err)
	}
	if events == nil {
		events = []models.FireEvent{}
	}
	return xhttp.ListResponse(c, events, int64(len(events)))
}

// StartMonitor starts a loop that outlives the request. A denied start is not an error:
// the response reports who owns polling.
func (h *MonitorEchoHandler) StartMonitor(c echo.Context) error {
	id := c.Param("id")
	started := h.engine.Start(context.WithoutCancel(c.Request().Context()), id)
	resp := monitorResponse{InstanceID: id, Running: h.engine.Running(id), OwnerID: h.engine.Status().OwnerID}
	if !started {
		return xhttp.DataResponse(c, http.StatusConflict, resp)
	}
	return xhttp.AcceptedResponse(c, resp)
}

func (h *MonitorEchoHandler) StopMonitor(c echo.Context) error {
	id := c.Param("id")
	h.engine.Stop(id)
	return xhttp.SuccessResponse(c, monitorResponse{InstanceID: id, Running: h.engine.Running(id), OwnerID: h.engine.Status().OwnerID})
}

func (h *MonitorEchoHandler) WakeMonitor(c echo.Context) error {
	return h.wake(c, c.Param("id"))
}

// Wake runs a single evaluation as an anonymous wake-up context.
func (h *MonitorEchoHandler) Wake(c echo.Context) error {
	return h.wake(c, "wake-"+uuid.NewString())
}

func (h *MonitorEchoHandler) wake(c echo.Context, id string) error {
	report, err := h.engine.Wake(c.Request().Context(), id)
	if err != nil {
		return h.fail(c, "wake", err)
	}
	return xhttp.SuccessResponse(c, report)
}

func (h *MonitorEchoHandler) fail(c echo.Context, op string, err error) error {
	var appErr *xhttp.AppError
	switch {
	case errors.Is(err, models.ErrSignalNotFound):
		appErr = xhttp.NotFoundError(err.Error())
	case errors.Is(err, models.ErrDuplicateSignal):
		appErr = xhttp.ConflictError(err.Error())
	case errors.Is(err, models.ErrArbitrationDenied):
		appErr = xhttp.ConflictError(err.Error()).WithParam("owner_id", h.engine.Status().OwnerID)
	case errors.Is(err, models.ErrMalformedSignal):
		appErr = xhttp.BadRequestError(err.Error())
	case errors.Is(err, models.ErrStorageLockTimeout), errors.Is(err, models.ErrTransientStorage):
		h.logger.Warn(op+" unavailable", xlogger.Error(err))
		appErr = xhttp.UnavailableError(err.Error())
	default:
		h.logger.Error(op+" failed", xlogger.Error(err))
		appErr = xhttp.InternalErrorf("%s failed", op)
	}
	return xhttp.AppErrorResponse(c, appErr.WithError(err))
}
