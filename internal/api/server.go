// Package api implements the HTTP front-end's peripheral surface (§6):
// the synchronous OCR endpoint, the health check, and the internal
// inference endpoint used when the Remote backend is in effect. Router
// wiring and CORS follow the teacher's cmd/api/main.go idiom.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bosocmputer/groundocr/internal/inference"
)

// Server bundles what the handlers need.
type Server struct {
	Client         inference.Client
	AllowedOrigins string
	InternalToken  string
	UploadDir      string
	DefaultSizing  inference.Sizing
	ModelLoaded    func() bool
}

// NewRouter builds the gin engine with CORS middleware and the three
// external interfaces §6 names.
func (s *Server) NewRouter() *gin.Engine {
	router := gin.Default()

	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", s.AllowedOrigins)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Internal-Token")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	router.GET("/health", s.HealthHandler)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.POST("/api/ocr", s.OCRHandler)
	router.POST("/internal/infer", s.InternalInferHandler)
	return router
}

// NewHTTPServer wraps the router in an *http.Server with the teacher's
// timeout profile (3s read, 3min write to allow for model latency).
func (s *Server) NewHTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:           addr,
		Handler:        s.NewRouter(),
		ReadTimeout:    3 * time.Second,
		WriteTimeout:   3 * time.Minute,
		MaxHeaderBytes: 1 << 20,
	}
}
