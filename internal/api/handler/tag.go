package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/macthinh22/my-knowledge-app/internal/service"
)

// TagHandler handles the tag registry endpoints.
type TagHandler struct {
	tags *service.TagService
}

// NewTagHandler creates a new tag handler.
func NewTagHandler(tags *service.TagService) *TagHandler {
	return &TagHandler{tags: tags}
}

type createAliasRequest struct {
	Alias     string `json:"alias"`
	Canonical string `json:"canonical"`
}

type renameTagRequest struct {
	FromTag string `json:"from_tag"`
	ToTag   string `json:"to_tag"`
}

type mergeTagsRequest struct {
	SourceTags []string `json:"source_tags"`
	TargetTag  string   `json:"target_tag"`
}

// List handles GET /api/tags.
func (h *TagHandler) List(c *gin.Context) {
	summary, err := h.tags.Summary(c.Request.Context())
	if err != nil {
		respondError(c, err, "Tag not found")
		return
	}
	c.JSON(http.StatusOK, summary)
}

// ListAliases handles GET /api/tags/aliases.
func (h *TagHandler) ListAliases(c *gin.Context) {
	aliases, err := h.tags.ListAliases(c.Request.Context())
	if err != nil {
		respondError(c, err, "Alias not found")
		return
	}
	c.JSON(http.StatusOK, aliases)
}

// CreateAlias handles POST /api/tags/aliases.
func (h *TagHandler) CreateAlias(c *gin.Context) {
	var req createAliasRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return
	}
	alias, err := h.tags.CreateAlias(c.Request.Context(), req.Alias, req.Canonical)
	if err != nil {
		respondError(c, err, "Alias not found")
		return
	}
	c.JSON(http.StatusOK, alias)
}

// DeleteAlias handles DELETE /api/tags/aliases/:alias. Missing aliases are not an error.
func (h *TagHandler) DeleteAlias(c *gin.Context) {
	if err := h.tags.DeleteAlias(c.Request.Context(), c.Param("alias")); err != nil {
		respondError(c, err, "Alias not found")
		return
	}
	c.Status(http.StatusNoContent)
}

// Rename handles POST /api/tags/rename.
func (h *TagHandler) Rename(c *gin.Context) {
	var req renameTagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return
	}
	summary, err := h.tags.Rename(c.Request.Context(), req.FromTag, req.ToTag)
	if err != nil {
		respondError(c, err, "Tag not found")
		return
	}
	c.JSON(http.StatusOK, summary)
}

// Merge handles POST /api/tags/merge.
func (h *TagHandler) Merge(c *gin.Context) {
	var req mergeTagsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return
	}
	summary, err := h.tags.Merge(c.Request.Context(), req.SourceTags, req.TargetTag)
	if err != nil {
		respondError(c, err, "Tag not found")
		return
	}
	c.JSON(http.StatusOK, summary)
}

// Delete handles DELETE /api/tags/:tag.
func (h *TagHandler) Delete(c *gin.Context) {
	summary, err := h.tags.Delete(c.Request.Context(), c.Param("tag"))
	if err != nil {
		respondError(c, err, "Tag not found")
		return
	}
	c.JSON(http.StatusOK, summary)
}
