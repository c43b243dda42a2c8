package handler

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
)

// Static serves files under root for requests no route claimed. Directories serve their
// index.html.
func Static(root string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			c.AbortWithStatus(http.StatusNotFound)
			return
		}

		urlPath := path.Clean("/" + c.Request.URL.Path)
		file := filepath.Join(root, filepath.FromSlash(urlPath))
		info, err := os.Stat(file)
		if err == nil && info.IsDir() {
			file = filepath.Join(file, "index.html")
			info, err = os.Stat(file)
		}
		if err != nil || info.IsDir() {
			c.AbortWithStatus(http.StatusNotFound)
			return
		}

		c.Header("Cache-Control", cacheControl(urlPath))
		c.File(file)
	}
}

// cacheControl gives application scripts a short lifetime; vendored /deps/ scripts and
// everything else are cached for an hour.
func cacheControl(urlPath string) string {
	if strings.HasSuffix(urlPath, ".js") && !strings.HasPrefix(urlPath, "/deps/") {
		return "max-age=30"
	}
	return "max-age=3600"
}
