package http

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/WebIDE/backend/internal/workspace"
)

// writeRequest is the body of POST /api/write.
type writeRequest struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// ListFiles lists a directory, or describes a file
func (h *Handlers) ListFiles(c *gin.Context) {
	done := h.tracker.TrackWorkspaceOperation("list")
	listing, err := h.workspace.List(c.Query("path"))
	done(err)
	if err != nil {
		h.fileError(c, err)
		return
	}
	c.JSON(http.StatusOK, listing)
}

// ReadFile returns a file's raw content with its detected content type
func (h *Handlers) ReadFile(c *gin.Context) {
	done := h.tracker.TrackWorkspaceOperation("read")
	info, err := h.workspace.Stat(c.Query("path"))
	if err != nil {
		done(err)
		h.fileError(c, err)
		return
	}

	f, err := os.Open(info.Abs)
	done(err)
	if err != nil {
		h.fileError(c, workspace.ErrNotFound)
		return
	}
	defer f.Close()

	c.Header("Content-Type", info.MimeType)
	http.ServeContent(c.Writer, c.Request, filepath.Base(info.Abs), info.ModTime, f)
}

// WriteFile stores a file, creating parent directories
func (h *Handlers) WriteFile(c *gin.Context) {
	var req writeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	done := h.tracker.TrackWorkspaceOperation("write")
	err := h.workspace.Write(req.Path, req.Content)
	done(err)
	if err != nil {
		h.fileError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Tree walks a directory recursively
func (h *Handlers) Tree(c *gin.Context) {
	depth := 0
	if raw := c.Query("depth"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid depth"})
			return
		}
		depth = n
	}

	path := c.Query("path")
	done := h.tracker.TrackWorkspaceOperation("tree")
	entries, err := h.workspace.Tree(c.Request.Context(), path, depth)
	done(err)
	if err != nil {
		h.fileError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"path":    path,
		"entries": entries,
		"count":   len(entries),
	})
}

// Search finds workspace paths matching a glob pattern
func (h *Handlers) Search(c *gin.Context) {
	pattern := c.Query("pattern")
	if pattern == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "pattern required"})
		return
	}

	done := h.tracker.TrackWorkspaceOperation("search")
	matches, err := h.workspace.Search(c.Request.Context(), pattern)
	done(err)
	if err != nil {
		h.fileError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"pattern": pattern,
		"matches": matches,
		"count":   len(matches),
	})
}

// fileError maps workspace errors to responses.
func (h *Handlers) fileError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, workspace.ErrInvalidPath):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid path"})
	case errors.Is(err, workspace.ErrPathRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": "path required"})
	case errors.Is(err, workspace.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	default:
		h.logger.Error("Workspace operation failed",
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
