package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/freelancehub/escrow-engine/internal/engine"
	"github.com/gin-gonic/gin"
)

// ActorKey is the gin context key under which the actor middleware stores the
// authenticated caller identity.
const ActorKey = "actor"

// Dependencies holds all dependencies needed by handlers.
type Dependencies struct {
	Logger *slog.Logger
	Engine *engine.Engine
}

// EscrowHandler handles escrow job HTTP requests.
type EscrowHandler struct {
	logger *slog.Logger
	engine *engine.Engine
}

// NewEscrowHandler creates a new EscrowHandler instance.
func NewEscrowHandler(deps *Dependencies) *EscrowHandler {
	return &EscrowHandler{
		logger: deps.Logger,
		engine: deps.Engine,
	}
}

// actor returns the authenticated caller set by the actor middleware.
func actor(c *gin.Context) engine.Identity {
	return engine.Identity(c.GetString(ActorKey))
}

// writeEngineError maps the engine's error taxonomy onto HTTP status codes.
func (h *EscrowHandler) writeEngineError(c *gin.Context, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, engine.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, engine.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, engine.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, engine.ErrInvalidState),
		errors.Is(err, engine.ErrReentrancy),
		errors.Is(err, engine.ErrIDCollision):
		status = http.StatusConflict
	case errors.Is(err, engine.ErrDeadline):
		status = http.StatusUnprocessableEntity
	case engine.IsTransferError(err):
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("Unexpected engine error",
			slog.String("path", c.Request.URL.Path),
			slog.Any("error", err),
		)
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}

	c.JSON(status, gin.H{"error": err.Error()})
}
