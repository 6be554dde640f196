package devservice

import (
	"bytes"
	"log"
	"net/http"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
)

// Path is the route of the local edge endpoint.
const Path = "/im_size"

// NewRouter returns the local edge service.
func NewRouter(opts Options, maxUploadBytes int64) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), corsMiddleware())
	r.MaxMultipartMemory = maxUploadBytes

	h := &handler{opts: opts, maxBytes: maxUploadBytes}
	r.POST(Path, h.detect)
	r.OPTIONS(Path, func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return r
}

type handler struct {
	opts     Options
	maxBytes int64
}

func (h *handler) detect(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes)

	header, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No image uploaded"})
		return
	}

	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read image"})
		return
	}
	defer file.Close()

	img, err := imaging.Decode(file, imaging.AutoOrientation(true))
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Unsupported image"})
		return
	}

	edges := EdgeMap(img, h.opts)

	var buf bytes.Buffer
	if err := imgio.JPEGEncoder(90)(&buf, edges); err != nil {
		log.Printf("devservice: encode edge map: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to encode result"})
		return
	}

	c.Data(http.StatusOK, "image/jpeg", buf.Bytes())
}

// corsMiddleware adds the permissive CORS headers the browser client needs.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		h.Set("Access-Control-Max-Age", "3600")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}
