package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"tokrelay/internal/failure"
	"tokrelay/internal/models"
	"tokrelay/internal/service"
)

// globalIdentity is the single rate-limit bucket used when per-client
// limiting is disabled.
const globalIdentity = "global"

type Handler struct {
	service   Servicer
	Log       *slog.Logger
	perClient bool
}

type Servicer interface {
	Download(ctx context.Context, rawURL, identity string) (*models.DownloadResponse, *service.Error)
	ResolveFile(filename string) (string, *service.Error)
	RecentHistory(ctx context.Context, limit int) ([]models.HistoryEntry, *service.Error)
	DownloadDir() string
}

func NewHandler(srv Servicer, log *slog.Logger, perClient bool) *Handler {
	return &Handler{
		service:   srv,
		Log:       log,
		perClient: perClient,
	}
}

func (h *Handler) Download(c *gin.Context) {
	var req models.DownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Log.Error("invalid request", slog.String("path", c.Request.URL.Path), slog.String("error", err.Error()))

		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: "invalid JSON body",
			Kind:  string(failure.KindInvalidInput),
		})
		return
	}

	identity := globalIdentity
	if h.perClient {
		identity = c.ClientIP()
	}

	res, serr := h.service.Download(c.Request.Context(), req.URL, identity)
	if serr != nil {
		h.writeError(c, serr)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *Handler) ServeFile(c *gin.Context) {
	filename := c.Param("filename")

	path, serr := h.service.ResolveFile(filename)
	if serr != nil {
		h.writeError(c, serr)
		return
	}

	c.File(path)
}

func (h *Handler) History(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	entries, serr := h.service.RecentHistory(c.Request.Context(), limit)
	if serr != nil {
		h.writeError(c, serr)
		return
	}

	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"downloads_dir": h.service.DownloadDir(),
	})
}

func (h *Handler) writeError(c *gin.Context, serr *service.Error) {
	resp := models.ErrorResponse{
		Error:     serr.Message,
		Kind:      string(serr.Kind),
		Attempted: serr.Attempted,
	}
	if serr.RetryAfter > 0 {
		retry := int(serr.RetryAfter.Seconds())
		if retry < 1 {
			retry = 1
		}
		resp.RetryAfter = retry
		c.Header("Retry-After", strconv.Itoa(retry))
	}

	c.JSON(serr.Kind.HTTPStatus(), resp)
}
