package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/macthinh22/my-knowledge-app/internal/domain"
	"github.com/macthinh22/my-knowledge-app/internal/service"
)

// VideoHandler handles video and job endpoints.
type VideoHandler struct {
	intake *service.IntakeService
	videos *service.VideoService
	search *service.SearchService
}

// NewVideoHandler creates a new video handler.
// Parameters:
//   - intake: accepts URLs and reports job state.
//   - videos: stored video access.
//   - search: semantic or substring search.
//
// Returns:
//   - *VideoHandler: initialized handler.
func NewVideoHandler(intake *service.IntakeService, videos *service.VideoService, search *service.SearchService) *VideoHandler {
	return &VideoHandler{intake: intake, videos: videos, search: search}
}

type submitVideoRequest struct {
	YouTubeURL string `json:"youtube_url"`
}

type updateVideoRequest struct {
	Notes *string `json:"notes"`
}

// Submit handles POST /api/videos.
// Parameters:
//   - c: Gin request context.
//
// Returns: none (writes 202 with the job record).
func (h *VideoHandler) Submit(c *gin.Context) {
	var req submitVideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return
	}

	job, err := h.intake.Submit(c.Request.Context(), req.YouTubeURL)
	if err != nil {
		respondError(c, err, "Job not found")
		return
	}
	c.JSON(http.StatusAccepted, job)
}

// ListJobs handles GET /api/videos/jobs?status=queued,processing.
func (h *VideoHandler) ListJobs(c *gin.Context) {
	var statuses []domain.JobStatus
	for _, raw := range strings.Split(c.Query("status"), ",") {
		if raw = strings.TrimSpace(raw); raw != "" {
			statuses = append(statuses, domain.JobStatus(raw))
		}
	}

	jobs, err := h.intake.Jobs(c.Request.Context(), statuses)
	if err != nil {
		respondError(c, err, "Job not found")
		return
	}
	c.JSON(http.StatusOK, jobs)
}

// GetJob handles GET /api/videos/jobs/:id.
func (h *VideoHandler) GetJob(c *gin.Context) {
	job, err := h.intake.Job(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "Job not found")
		return
	}
	c.JSON(http.StatusOK, job)
}

// List handles GET /api/videos with an optional q filter.
func (h *VideoHandler) List(c *gin.Context) {
	videos, err := h.videos.List(c.Request.Context(), c.Query("q"))
	if err != nil {
		respondError(c, err, "Video not found")
		return
	}
	c.JSON(http.StatusOK, videos)
}

// Search handles GET /api/videos/search?q=&limit=&keyword=.
func (h *VideoHandler) Search(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			badRequest(c, "limit must be a positive integer")
			return
		}
		limit = n
	}

	results, err := h.search.Search(c.Request.Context(), c.Query("q"), limit, c.Query("keyword"))
	if err != nil {
		respondError(c, err, "Video not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"results":  results,
		"total":    len(results),
		"semantic": h.search.Semantic(),
	})
}

// Get handles GET /api/videos/:id.
func (h *VideoHandler) Get(c *gin.Context) {
	video, err := h.videos.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "Video not found")
		return
	}
	c.JSON(http.StatusOK, video)
}

// Update handles PATCH /api/videos/:id. Only notes can change; a null
// notes field leaves the record untouched.
func (h *VideoHandler) Update(c *gin.Context) {
	var req updateVideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return
	}

	ctx := c.Request.Context()
	var (
		video *domain.Video
		err   error
	)
	if req.Notes == nil {
		video, err = h.videos.Get(ctx, c.Param("id"))
	} else {
		video, err = h.videos.UpdateNotes(ctx, c.Param("id"), req.Notes)
	}
	if err != nil {
		respondError(c, err, "Video not found")
		return
	}
	c.JSON(http.StatusOK, video)
}

// Delete handles DELETE /api/videos/:id.
func (h *VideoHandler) Delete(c *gin.Context) {
	if err := h.videos.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err, "Video not found")
		return
	}
	c.Status(http.StatusNoContent)
}
