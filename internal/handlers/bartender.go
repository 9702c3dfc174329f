package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	sb "smart_bartender"
	"smart_bartender/internal/bartender"
	"smart_bartender/internal/models"
	"smart_bartender/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	statusOK = "ok"

	errGetStatus       = "failed to load status"
	errInvalidID       = "invalid reservoir id"
	errInternalFailure = "internal error"
)

// statusFor maps coordinator errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, bartender.ErrBusy),
		errors.Is(err, bartender.ErrAlreadyRefilling),
		errors.Is(err, bartender.ErrInsufficientVolume):
		return http.StatusConflict
	case errors.Is(err, bartender.ErrUnknownRecipe):
		return http.StatusNotFound
	case errors.Is(err, bartender.ErrUnknownReservoir),
		errors.Is(err, service.ErrBadAction):
		return http.StatusBadRequest
	case errors.Is(err, bartender.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err and writes it with the mapped status. Internal
// failures are not echoed to the client.
func (h *Handler) respondError(c *gin.Context, logKey string, err error, kv ...interface{}) {
	code := statusFor(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		msg = errInternalFailure
	}
	if h.log != nil {
		fields := append([]interface{}{"err", err, "status", code}, kv...)
		if code >= http.StatusInternalServerError {
			h.log.Errorw(logKey, fields...)
		} else {
			h.log.Infow(logKey, fields...)
		}
	}
	c.JSON(code, sb.ErrorResponse{Error: msg})
}

func parseReservoirID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, sb.ErrorResponse{Error: errInvalidID})
		return 0, false
	}
	return id, true
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// @Summary      Bar status
// @Description  Pour state, current drink, per-reservoir levels and refill flags.
// @Tags         bar
// @Produce      json
// @Success      200  {object}  models.SystemStatus
// @Failure      500  {object}  smart_bartender.ErrorResponse
// @Router       /api/v1/status [get]
func (h *Handler) getStatus(c *gin.Context) {
	st, err := h.services.Monitoring.GetStatus(c.Request.Context())
	if err != nil {
		if h.log != nil {
			h.log.Errorw("status_failed", "err", err)
		}
		c.JSON(http.StatusInternalServerError, sb.ErrorResponse{Error: errGetStatus})
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary      Reservoir detail
// @Tags         bar
// @Produce      json
// @Param        id   path      int  true  "Reservoir id"
// @Success      200  {object}  models.ReservoirStatus
// @Failure      400  {object}  smart_bartender.ErrorResponse
// @Router       /api/v1/reservoirs/{id} [get]
func (h *Handler) getReservoir(c *gin.Context) {
	id, ok := parseReservoirID(c)
	if !ok {
		return
	}
	st, err := h.services.Monitoring.GetReservoir(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, "reservoir_lookup_failed", err, "reservoir", id)
		return
	}
	c.JSON(http.StatusOK, st)
}

type recipesResponse struct {
	Names   []string                 `json:"names"`
	Recipes map[string]models.Recipe `json:"recipes"`
}

// @Summary      List recipes
// @Tags         bar
// @Produce      json
// @Success      200  {object}  recipesResponse
// @Router       /api/v1/recipes [get]
func (h *Handler) getRecipes(c *gin.Context) {
	c.JSON(http.StatusOK, recipesResponse{
		Names:   h.services.Bartender.ListRecipes(),
		Recipes: h.services.Bartender.Recipes(),
	})
}

// @Summary      Pour a drink
// @Description  Accepts the pour and dispenses in the background.
// @Tags         bar
// @Produce      json
// @Param        drink  path      string  true  "Recipe name"
// @Success      202    {object}  smart_bartender.PourAccepted
// @Failure      404    {object}  smart_bartender.ErrorResponse
// @Failure      409    {object}  smart_bartender.ErrorResponse
// @Failure      503    {object}  smart_bartender.ErrorResponse
// @Router       /api/v1/pour/{drink} [post]
func (h *Handler) pour(c *gin.Context) {
	drink := c.Param("drink")
	res, err := h.services.Bartender.StartPour(drink)
	if err != nil {
		h.respondError(c, "pour_rejected", err, "recipe", drink)
		return
	}
	c.JSON(http.StatusAccepted, sb.PourAccepted{
		Message:         fmt.Sprintf("Pouring %s", drink),
		JobID:           res.JobID,
		DurationSeconds: res.DurationSeconds(),
	})
}

// @Summary      Refill a reservoir
// @Tags         bar
// @Produce      json
// @Param        id   path      int  true  "Reservoir id"
// @Success      202  {object}  smart_bartender.RefillAccepted
// @Failure      400  {object}  smart_bartender.ErrorResponse
// @Failure      409  {object}  smart_bartender.ErrorResponse
// @Failure      503  {object}  smart_bartender.ErrorResponse
// @Router       /api/v1/refill/{id} [post]
func (h *Handler) refill(c *gin.Context) {
	id, ok := parseReservoirID(c)
	if !ok {
		return
	}
	res, err := h.services.Bartender.StartRefill(id)
	if err != nil {
		h.respondError(c, "refill_rejected", err, "reservoir", id)
		return
	}
	c.JSON(http.StatusAccepted, sb.RefillAccepted{
		Message:        fmt.Sprintf("Refilling reservoir %d", id),
		JobID:          res.JobID,
		TimeoutSeconds: res.Timeout.Seconds(),
	})
}

// @Summary      Manual line control
// @Description  Drives one valve or pump for diagnostics. Lines switched on are turned off automatically after the safety limit.
// @Tags         manual
// @Produce      json
// @Param        kind    path      string  true  "Line kind"  Enums(valve,pump)
// @Param        id      path      int     true  "Reservoir id"
// @Param        action  path      string  true  "Action"  Enums(open,close,on,off)
// @Success      200     {object}  smart_bartender.MessageResponse
// @Failure      400     {object}  smart_bartender.ErrorResponse
// @Failure      401     {object}  smart_bartender.ErrorResponse
// @Failure      409     {object}  smart_bartender.ErrorResponse
// @Router       /api/v1/manual/{kind}/{id}/{action} [post]
// @Security     BearerAuth
func (h *Handler) manual(c *gin.Context) {
	id, ok := parseReservoirID(c)
	if !ok {
		return
	}
	kind, action := c.Param("kind"), c.Param("action")
	if err := h.services.Manual.Switch(kind, id, action); err != nil {
		h.respondError(c, "manual_rejected", err, "kind", kind, "reservoir", id, "action", action)
		return
	}
	if h.log != nil {
		h.log.Infow("manual_switch", "kind", kind, "reservoir", id, "action", action, "operator", c.GetInt(ctxOperatorID))
	}
	c.JSON(http.StatusOK, sb.MessageResponse{Message: fmt.Sprintf("%s %d %s", kind, id, action)})
}
