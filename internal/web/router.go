// Package web serves the single-page client and the session API behind it.
package web

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ironsheep/edgeview/internal/handle"
	"github.com/ironsheep/edgeview/internal/imagefile"
	"github.com/ironsheep/edgeview/internal/view"
)

//go:embed assets/*.html
var assets embed.FS

const viewKey = "view"

// Options configures the router.
type Options struct {
	Theme          Theme
	MaxUploadBytes int64
	ServiceURL     string
}

type api struct {
	sessions *Sessions
	handles  *handle.Registry
	opts     Options
}

// NewRouter wires the page, the session API, the event stream and the blob
// endpoint.
func NewRouter(sessions *Sessions, handles *handle.Registry, opts Options) *gin.Engine {
	a := &api{sessions: sessions, handles: handles, opts: opts}

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.SetHTMLTemplate(template.Must(template.New("").ParseFS(assets, "assets/*.html")))

	r.GET("/", a.index)
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":   "ok",
			"time":     time.Now().UTC().Format(time.RFC3339),
			"sessions": sessions.Len(),
			"handles":  handles.Len(),
		})
	})
	r.GET(strings.TrimSuffix(handle.DefaultBasePath, "/")+"/:id", a.blob)

	g := r.Group("/api/sessions")
	g.POST("", a.createSession)

	sess := g.Group("/:id", a.loadSession)
	sess.GET("", a.getSession)
	sess.DELETE("", a.closeSession)
	sess.POST("/file", a.selectFile)
	sess.POST("/detect", a.detect)
	sess.POST("/cancel", a.cancel)
	sess.GET("/events", a.events)

	return r
}

func (a *api) index(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", gin.H{
		"Theme":      a.opts.Theme,
		"Accept":     strings.Join(imagefile.AcceptedExtensions, ", "),
		"ServiceURL": a.opts.ServiceURL,
	})
}

func (a *api) blob(c *gin.Context) {
	data, contentType, ok := a.handles.Lookup(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "handle revoked or unknown"})
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, contentType, data)
}

func (a *api) createSession(c *gin.Context) {
	id, v := a.sessions.Create()
	c.JSON(http.StatusCreated, gin.H{"id": id, "state": v.Snapshot()})
}

// loadSession resolves :id to a live view or aborts with 404.
func (a *api) loadSession(c *gin.Context) {
	v, ok := a.sessions.Get(c.Param("id"))
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.Set(viewKey, v)
	c.Next()
}

func viewFrom(c *gin.Context) *view.View {
	return c.MustGet(viewKey).(*view.View)
}

func (a *api) getSession(c *gin.Context) {
	c.JSON(http.StatusOK, viewFrom(c).Snapshot())
}

func (a *api) closeSession(c *gin.Context) {
	a.sessions.Close(c.Param("id"))
	c.Status(http.StatusNoContent)
}

func (a *api) selectFile(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, a.opts.MaxUploadBytes)

	header, err := c.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}

	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read file"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read file"})
		return
	}

	snap, err := viewFrom(c).SelectFile(imagefile.FromBytes(header.Filename, data))
	if err != nil {
		respondViewError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// detect starts a request. The request outlives the HTTP call, so it is not
// bound to the request context. With ?wait=true the handler blocks until
// the task finishes or the client goes away.
func (a *api) detect(c *gin.Context) {
	v := viewFrom(c)
	task := v.RequestDetection(context.Background())
	if task == nil {
		c.JSON(http.StatusOK, v.Snapshot())
		return
	}

	if c.Query("wait") != "true" {
		c.JSON(http.StatusAccepted, v.Snapshot())
		return
	}

	select {
	case <-task.Done():
		c.JSON(http.StatusOK, task.Wait())
	case <-c.Request.Context().Done():
		c.JSON(http.StatusAccepted, v.Snapshot())
	}
}

func (a *api) cancel(c *gin.Context) {
	v := viewFrom(c)
	canceled := v.Cancel()
	c.JSON(http.StatusOK, gin.H{"canceled": canceled, "state": v.Snapshot()})
}

func respondViewError(c *gin.Context, err error) {
	if errors.Is(err, view.ErrClosed) {
		c.JSON(http.StatusGone, gin.H{"error": "session closed"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
