package http

import (
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
)

// Static serves the frontend from dir for requests no route matched. "/"
// and directories map to index.html. When the client accepts gzip and a
// precompressed "<file>.gz" sits next to the file, that is served instead.
func Static(dir string) gin.HandlerFunc {
	root, err := filepath.Abs(dir)
	if err != nil {
		root = filepath.Clean(dir)
	}

	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			c.String(http.StatusNotFound, "Not found")
			return
		}

		name := filepath.Join(root, filepath.FromSlash(path.Clean("/"+c.Request.URL.Path)))
		if name != root && !strings.HasPrefix(name, root+string(filepath.Separator)) {
			c.String(http.StatusBadRequest, "Bad request")
			return
		}

		info, err := os.Stat(name)
		if err == nil && info.IsDir() {
			name = filepath.Join(name, "index.html")
			info, err = os.Stat(name)
		}
		if err != nil || !info.Mode().IsRegular() {
			c.String(http.StatusNotFound, "Not found")
			return
		}

		c.Header("Content-Type", contentType(name))
		c.Header("Vary", "Accept-Encoding")

		served := name
		if acceptsGzip(c.Request) {
			if gz, err := os.Stat(name + ".gz"); err == nil && gz.Mode().IsRegular() {
				served = name + ".gz"
				info = gz
				c.Header("Content-Encoding", "gzip")
			}
		}

		f, err := os.Open(served)
		if err != nil {
			c.String(http.StatusNotFound, "Not found")
			return
		}
		defer f.Close()

		http.ServeContent(c.Writer, c.Request, filepath.Base(name), info.ModTime(), f)
	}
}

func contentType(name string) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	if mtype, err := mimetype.DetectFile(name); err == nil {
		return mtype.String()
	}
	return "application/octet-stream"
}

func acceptsGzip(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		enc, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		if strings.TrimSpace(enc) != "gzip" {
			continue
		}
		q, ok := strings.CutPrefix(strings.ReplaceAll(params, " ", ""), "q=")
		if !ok {
			return true
		}
		weight, err := strconv.ParseFloat(q, 64)
		return err == nil && weight > 0
	}
	return false
}
