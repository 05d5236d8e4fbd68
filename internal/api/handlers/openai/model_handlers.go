package openai

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/modelbridge/gembridge/internal/errors"
)

// Models handles GET /v1/models and returns the advertised model catalog.
func (h *ChatAPIHandler) Models(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"object": "list",
		"data":   h.BaseHandler.Models.List(),
	})
}

// ModelByID handles GET /v1/models/:id.
func (h *ChatAPIHandler) ModelByID(c *gin.Context) {
	id := c.Param("id")
	model := h.BaseHandler.Models.Lookup(id)
	if model == nil {
		h.WriteErrorResponse(c, apperrors.New(
			http.StatusNotFound,
			apperrors.CodeModelNotFound,
			fmt.Sprintf("Model '%s' not found", id),
			nil,
		))
		return
	}
	c.JSON(http.StatusOK, model)
}
