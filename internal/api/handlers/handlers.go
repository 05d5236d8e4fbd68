// Package handlers provides core API handler functionality for the bridge
// server. It includes the shared handler state, error response writing, and
// SSE utilities used by the endpoint handlers.
package handlers

import (
	"net/http"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/context"

	"github.com/modelbridge/gembridge/internal/config"
	apperrors "github.com/modelbridge/gembridge/internal/errors"
	"github.com/modelbridge/gembridge/internal/registry"
	"github.com/modelbridge/gembridge/internal/session"
	openaitranslator "github.com/modelbridge/gembridge/internal/translator/openai"
)

// BaseHandler carries the shared state of all endpoint handlers: the model
// catalog, the session registry, the message converter and a race-safe
// snapshot of the current configuration.
type BaseHandler struct {
	Models    *registry.Registry
	Sessions  *session.Registry
	Converter *openaitranslator.Converter

	cfg atomic.Pointer[config.Config]
}

// NewBaseHandler creates the shared handler state.
func NewBaseHandler(cfg *config.Config, models *registry.Registry, sessions *session.Registry, converter *openaitranslator.Converter) *BaseHandler {
	h := &BaseHandler{Models: models, Sessions: sessions, Converter: converter}
	h.cfg.Store(cfg)
	return h
}

// Config returns the current configuration snapshot.
func (h *BaseHandler) Config() *config.Config {
	return h.cfg.Load()
}

// UpdateConfig swaps in a new configuration; in-flight requests keep the
// snapshot they started with.
func (h *BaseHandler) UpdateConfig(cfg *config.Config) {
	h.cfg.Store(cfg)
}

// RequestContext derives a cancellable context tied to the client connection,
// so a disconnect propagates into the engine invocation.
func (h *BaseHandler) RequestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithCancel(c.Request.Context())
}

// WriteErrorResponse translates err and writes the OpenAI-style error
// envelope with the translated HTTP status. The error is logged before
// translation; no internal detail beyond the message text reaches the client.
func (h *BaseHandler) WriteErrorResponse(c *gin.Context, err error) {
	status, body := apperrors.Translate(err)
	log.WithFields(log.Fields{
		"status": status,
		"path":   c.Request.URL.Path,
	}).Errorf("request failed: %v", err)
	c.JSON(status, body)
}

// WriteValidationError writes a 400 with the given code and message.
func (h *BaseHandler) WriteValidationError(c *gin.Context, code, message string) {
	c.JSON(http.StatusBadRequest, apperrors.Response{
		Error: apperrors.Detail{
			Message: message,
			Type:    apperrors.TypeInvalidRequest,
			Code:    code,
		},
	})
}
