package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"lead_bot/internal/model"
	"lead_bot/internal/storage"
)

func NewHandler(store storage.Storage, monitor Monitor, log *slog.Logger) *Handler {
	return &Handler{
		store:   store,
		monitor: monitor,
		log:     log,
		now:     time.Now,
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": h.now().UTC().Format(time.RFC3339),
		"active":    len(h.monitor.ActiveWorkspaces()),
	})
}

func (h *Handler) ListWorkspaces(c *gin.Context) {
	ctx := c.Request.Context()
	workspaces, err := h.store.ListWorkspaces(ctx)
	if err != nil {
		h.log.Error("database error", "operation", "list_workspaces", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list workspaces"})
		return
	}

	out := make([]workspaceInfo, 0, len(workspaces))
	for _, ws := range workspaces {
		info := workspaceInfo{
			ID:        ws.ID,
			ChannelID: ws.ChannelID,
			Window:    string(ws.Window),
			Phrases:   []string{},
			Active:    h.monitor.Active(ws.ID),
		}
		if phrases, err := h.store.ListPhrases(ctx, ws.ID); err == nil {
			for _, p := range phrases {
				info.Phrases = append(info.Phrases, p.Text)
			}
		}
		if n, err := h.store.CountNotified(ctx, ws.ID); err == nil {
			info.Delivered = n
		}
		if next, ok := h.monitor.NextRun(ws.ID); ok && !next.IsZero() {
			info.NextRun = &next
		}
		if rep, ok := h.monitor.LastReport(ws.ID); ok {
			info.LastReport = newReportInfo(rep)
		}
		out = append(out, info)
	}

	c.JSON(http.StatusOK, gin.H{"workspaces": out})
}

func (h *Handler) StartWorkspace(c *gin.Context) {
	id, ok := h.workspaceID(c)
	if !ok {
		return
	}
	if _, err := h.store.GetWorkspace(c.Request.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "workspace not found"})
			return
		}
		h.log.Error("database error", "operation", "get_workspace", "workspace_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load workspace"})
		return
	}

	res, err := h.monitor.Start(id)
	if err != nil {
		h.log.Error("start monitoring", "workspace_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.log.Info("monitoring started via api", "workspace_id", id, "result", res)
	c.JSON(http.StatusOK, gin.H{"id": id, "result": res.String()})
}

func (h *Handler) StopWorkspace(c *gin.Context) {
	id, ok := h.workspaceID(c)
	if !ok {
		return
	}
	res := h.monitor.Stop(id)
	h.log.Info("monitoring stopped via api", "workspace_id", id, "result", res)
	c.JSON(http.StatusOK, gin.H{"id": id, "result": res.String()})
}

// Search runs a one-off search without delivering anything.
func (h *Handler) Search(c *gin.Context) {
	phrase := strings.Join(strings.Fields(c.Query("q")), " ")
	if phrase == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter q is required"})
		return
	}
	window, err := model.ParseWindow(c.DefaultQuery("window", string(model.WindowWeek)))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	posts, err := h.monitor.RunOnce(c.Request.Context(), phrase, window)
	if err != nil {
		h.log.Error("search", "phrase", phrase, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	out := make([]postInfo, 0, len(posts))
	for _, p := range posts {
		out = append(out, newPostInfo(p))
	}
	c.JSON(http.StatusOK, gin.H{
		"phrase": phrase,
		"window": window,
		"count":  len(out),
		"posts":  out,
	})
}

func (h *Handler) workspaceID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid workspace id"})
		return 0, false
	}
	return id, true
}
