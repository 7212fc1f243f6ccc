// Package server exposes the consensus pipeline over HTTP.
package server

import (
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/avelsen/vision-consensus/internal/config"
	"github.com/avelsen/vision-consensus/internal/media"
	"github.com/avelsen/vision-consensus/internal/output"
	"github.com/avelsen/vision-consensus/internal/runner"
)

// Server handles image uploads and returns per-image consensus results.
type Server struct {
	cfg    *config.Config
	runner *runner.Runner
	log    zerolog.Logger
}

// New creates a server around a configured runner.
func New(cfg *config.Config, r *runner.Runner, log zerolog.Logger) *Server {
	return &Server{
		cfg:    cfg,
		runner: r,
		log:    log.With().Str("component", "server").Logger(),
	}
}

// Router builds the gin engine with all routes mounted.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), s.requestLog())

	engine.GET("/healthz", s.handleHealth)

	api := engine.Group("/api")
	api.POST("/analyze", s.handleAnalyze)

	return engine
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := uuid.NewString()
		c.Set("request_id", reqID)
		c.Header("X-Request-ID", reqID)

		c.Next()

		s.log.Info().
			Str("request_id", reqID).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Msg("request")
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "models": s.cfg.Models})
}

// handleAnalyze accepts a multipart upload of question images plus optional
// prompt and mode fields, and responds with the analyzed answers per image.
func (s *Server) handleAnalyze(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid multipart form: %v", err)})
		return
	}

	files := form.File["images"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no images uploaded (field 'images')"})
		return
	}
	if len(files) > media.MaxImages {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("too many images: %d (limit %d)", len(files), media.MaxImages),
		})
		return
	}

	mode, err := runner.ParseMode(c.PostForm("mode"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if c.PostForm("mode") == "" {
		mode, _ = runner.ParseMode(s.cfg.DefaultMode)
	}

	// Load every upload independently: one bad file becomes that image's
	// processing error, never the request's.
	placeholders := make([]runner.ImageResult, len(files))
	images := make([]media.Image, 0, len(files))
	valid := make([]int, 0, len(files))
	for i, fh := range files {
		img, loadErr := s.loadUpload(fh)
		if loadErr != nil {
			placeholders[i] = runner.ImageResult{
				Filename:        fh.Filename,
				ProcessingError: loadErr.Error(),
			}
			continue
		}
		images = append(images, img)
		valid = append(valid, i)
	}

	if len(images) > 0 {
		result, runErr := s.runner.Run(c.Request.Context(), runner.Request{
			Images: images,
			Models: s.cfg.Models,
			Prompt: c.PostForm("prompt"),
			Mode:   mode,
		})
		if runErr != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": runErr.Error()})
			return
		}

		for j, idx := range valid {
			placeholders[idx] = result.Images[j]
		}
		c.JSON(http.StatusOK, output.Result{
			Prompt:     c.PostForm("prompt"),
			Mode:       mode,
			Models:     s.cfg.Models,
			Images:     placeholders,
			CallsSaved: result.CallsSaved,
		})
		return
	}

	// Every upload was rejected; still report each image's failure.
	c.JSON(http.StatusOK, output.Result{
		Prompt: c.PostForm("prompt"),
		Mode:   mode,
		Models: s.cfg.Models,
		Images: placeholders,
	})
}

func (s *Server) loadUpload(fh *multipart.FileHeader) (media.Image, error) {
	f, err := fh.Open()
	if err != nil {
		return media.Image{}, fmt.Errorf("opening upload: %w", err)
	}
	defer f.Close()
	return media.FromReader(fh.Filename, f, s.cfg.MaxImageBytes)
}
