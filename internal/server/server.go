// Package server exposes the scan pipeline over HTTP with a JSON and base64
// transport.
package server

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"docscan/internal/config"
	"docscan/internal/pipeline"
	"docscan/internal/scanerr"
)

// Scanner is the part of the pipeline the server depends on.
type Scanner interface {
	Process(data []byte) (*pipeline.Output, error)
}

// ProcessRequest is the body of POST /process-document.
type ProcessRequest struct {
	Image string `json:"image"` // base64, optionally as a data URL
}

// ProcessResponse is the success body of POST /process-document.
type ProcessResponse struct {
	Success               bool         `json:"success"`
	ProcessedImage        string       `json:"processed_image"`
	OriginalWithDetection string       `json:"original_with_detection"`
	CornersDetected       [][2]float64 `json:"corners_detected"`
	UsedFallback          bool         `json:"used_fallback"`
	Method                string       `json:"method"`
	Message               string       `json:"message"`
}

// Server routes requests to a Scanner.
type Server struct {
	scanner Scanner
	cfg     config.Server
	log     zerolog.Logger
	engine  *gin.Engine
}

// New builds the gin engine and its routes.
func New(scanner Scanner, cfg config.Server, log zerolog.Logger) *Server {
	s := &Server{scanner: scanner, cfg: cfg, log: log}

	e := gin.New()
	e.Use(gin.Recovery(), s.logRequests(), cors())
	e.GET("/health", s.Health)
	e.GET("/test", s.Test)
	e.POST("/process-document", s.ProcessDocument)
	s.engine = e
	return s
}

// Handler returns the HTTP handler serving all routes.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on cfg.Addr until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.cfg.Addr).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.RequestTimeout+5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "message": "Document processing service is running"})
}

func (s *Server) Test(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Document processing server is running!"})
}

// ProcessDocument decodes the posted image, scans it and answers with both
// result images in base64.
func (s *Server) ProcessDocument(c *gin.Context) {
	if s.cfg.MaxBodyBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxBodyBytes)
	}

	var req ProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, http.StatusRequestEntityTooLarge, "Request body too large", err)
			return
		}
		respondError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Image == "" {
		respondError(c, http.StatusBadRequest, "No image data provided", nil)
		return
	}

	data, err := DecodeImageData(req.Image)
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid base64 image data", err)
		return
	}

	out, err := s.process(c.Request.Context(), data)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		respondError(c, http.StatusGatewayTimeout, "Document processing timed out", err)
		return
	case errors.Is(err, context.Canceled):
		// client went away
		c.Abort()
		return
	case errors.Is(err, scanerr.ErrDecode):
		respondError(c, http.StatusBadRequest, "Failed to decode image", err)
		return
	case err != nil:
		s.log.Error().Err(err).Msg("process document")
		respondError(c, http.StatusInternalServerError, "Failed to process document", err)
		return
	}

	c.JSON(http.StatusOK, ProcessResponse{
		Success:               true,
		ProcessedImage:        base64.StdEncoding.EncodeToString(out.Cropped),
		OriginalWithDetection: base64.StdEncoding.EncodeToString(out.Visualized),
		CornersDetected:       out.Corners.Array(),
		UsedFallback:          out.UsedFallback,
		Method:                out.Method,
		Message:               "Document processed and cropped successfully",
	})
}

type outcome struct {
	out *pipeline.Output
	err error
}

// process runs the scan in its own goroutine so a timeout can answer the
// client while the run finishes and frees its buffers in the background.
func (s *Server) process(ctx context.Context, data []byte) (*pipeline.Output, error) {
	if s.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
	}

	done := make(chan outcome, 1)
	go func() {
		out, err := s.scanner.Process(data)
		done <- outcome{out, err}
	}()

	select {
	case o := <-done:
		return o.out, o.err
	case <-ctx.Done():
		s.log.Warn().Err(ctx.Err()).Msg("abandoning document run")
		return nil, ctx.Err()
	}
}

// DecodeImageData accepts plain base64 or a data URL such as
// "data:image/jpeg;base64,...".
func DecodeImageData(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		i := strings.IndexByte(s, ',')
		if i < 0 {
			return nil, errors.New("data URL without payload")
		}
		s = s[i+1:]
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		if raw, rawErr := base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "=")); rawErr == nil {
			return raw, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("empty image payload")
	}
	return data, nil
}

func respondError(c *gin.Context, status int, message string, err error) {
	body := gin.H{"error": message}
	if err != nil {
		body["message"] = err.Error()
	}
	c.AbortWithStatusJSON(status, body)
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}
