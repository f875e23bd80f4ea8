// Package server exposes the session service over HTTP and a websocket
// event stream.
package server

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"viral-script-agent/internal/config"
	"viral-script-agent/internal/domain"
	"viral-script-agent/internal/export"
	"viral-script-agent/internal/jobs"
	"viral-script-agent/internal/media"
	"viral-script-agent/internal/session"
)

// MaxUploadBytes bounds multipart media uploads.
const MaxUploadBytes = 512 << 20

// Credential headers accepted on run creation.
const (
	HeaderOpenAIKey = "X-OpenAI-Key"
	HeaderGeminiKey = "X-Gemini-Key"
)

type runRequest struct {
	URL      string `json:"url"`
	Fidelity string `json:"fidelity"`
}

// Server is the HTTP front end of one session.
type Server struct {
	app     *fiber.App
	service *session.Service
	logger  zerolog.Logger
}

// New builds the fiber app and registers all routes.
func New(service *session.Service, logger zerolog.Logger) *Server {
	s := &Server{service: service, logger: logger}
	s.app = fiber.New(fiber.Config{
		AppName:               "viral-script-agent",
		BodyLimit:             MaxUploadBytes,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})
	s.app.Use(s.requestLogger)
	s.routes()
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on addr until Shutdown.
func (s *Server) Listen(addr string) error {
	s.logger.Info().Str("addr", addr).Msg("http server listening")
	return s.app.Listen(addr)
}

// Serve serves on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	return s.app.Listener(ln)
}

// Shutdown stops accepting connections and waits for open requests.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func (s *Server) routes() {
	api := s.app.Group("/api")
	api.Get("/diagnostics", s.getDiagnostics)
	api.Post("/diagnostics/refresh", s.refreshDiagnostics)
	api.Post("/diagnostics/:id/fix", s.fixDiagnostic)
	api.Get("/settings", s.getSettings)
	api.Put("/settings", s.putSettings)
	api.Get("/models", s.getModels)
	api.Post("/models/:tier/download", s.downloadModel)
	api.Post("/runs", s.createRun)
	api.Get("/runs/current", s.currentRun)
	api.Delete("/runs/current", s.resetRun)
	api.Get("/runs/current/artifacts/:format", s.artifact)
	api.Get("/events", s.events)

	s.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	s.app.Get("/ws/events", websocket.New(s.streamEvents))
}

func (s *Server) getDiagnostics(c *fiber.Ctx) error {
	return c.JSON(s.service.Diagnostics())
}

func (s *Server) refreshDiagnostics(c *fiber.Ctx) error {
	report, err := s.service.RefreshDiagnostics()
	if err != nil {
		return err
	}
	return c.JSON(report)
}

func (s *Server) fixDiagnostic(c *fiber.Ctx) error {
	report, err := s.service.Fix(c.UserContext(), c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	}
	return c.JSON(report)
}

func (s *Server) getSettings(c *fiber.Ctx) error {
	settings, err := s.service.Settings()
	if err != nil {
		return err
	}
	return c.JSON(settings)
}

func (s *Server) putSettings(c *fiber.Ctx) error {
	var settings domain.Settings
	if err := c.BodyParser(&settings); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid settings JSON")
	}
	saved, err := s.service.SaveSettings(settings)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return c.JSON(saved)
}

func (s *Server) getModels(c *fiber.Ctx) error {
	return c.JSON(s.service.ModelTiers())
}

func (s *Server) downloadModel(c *fiber.Ctx) error {
	settings, err := s.service.DownloadModelTier(c.UserContext(), c.Params("tier"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	}
	return c.JSON(settings)
}

// createRun accepts either JSON {url, fidelity} or a multipart form with a
// media file and an optional fidelity field.
func (s *Server) createRun(c *fiber.Ctx) error {
	creds := config.Credentials{
		OpenAIKey: strings.TrimSpace(c.Get(HeaderOpenAIKey)),
		GeminiKey: strings.TrimSpace(c.Get(HeaderGeminiKey)),
	}

	var (
		ref      media.Reference
		fidelity string
	)
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		fh, err := c.FormFile("media")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "multipart field \"media\" is required")
		}
		if !media.IsAllowedExtension(fh.Filename) {
			return fiber.NewError(fiber.StatusUnsupportedMediaType, fmt.Sprintf("%s: %s", media.ErrUnsupportedMedia, fh.Filename))
		}
		data, err := readUpload(fh)
		if err != nil {
			return err
		}
		ref = media.FromUpload(fh.Filename, data)
		fidelity = c.FormValue("fidelity")
	} else {
		var req runRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid run JSON")
		}
		if strings.TrimSpace(req.URL) == "" {
			return fiber.NewError(fiber.StatusBadRequest, "`url` field is required")
		}
		ref = media.FromURL(req.URL)
		fidelity = req.Fidelity
	}

	run, err := s.service.Start(ref, fidelity, creds)
	switch {
	case errors.Is(err, jobs.ErrRunAlreadyActive):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case err != nil:
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return c.Status(fiber.StatusAccepted).JSON(run)
}

func (s *Server) currentRun(c *fiber.Ctx) error {
	return c.JSON(s.service.Current())
}

func (s *Server) resetRun(c *fiber.Ctx) error {
	if err := s.service.Reset(); err != nil {
		return fiber.NewError(fiber.StatusConflict, err.Error())
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) artifact(c *fiber.Ctx) error {
	if _, err := export.ParseFormat(c.Params("format")); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	artifact, err := s.service.Artifact(c.Params("format"))
	switch {
	case errors.Is(err, jobs.ErrNoRun):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case err != nil:
		return err
	}

	c.Set(fiber.HeaderContentType, artifact.ContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", artifact.FileName))
	return c.Send(artifact.Data)
}

func (s *Server) events(c *fiber.Ctx) error {
	since, err := strconv.ParseInt(c.Query("since", "0"), 10, 64)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "`since` must be an integer")
	}
	events := s.service.Events(since)
	if events == nil {
		events = []jobs.Event{}
	}
	return c.JSON(events)
}

// streamEvents replays history after ?since and then pushes live events
// until the client disconnects.
func (s *Server) streamEvents(conn *websocket.Conn) {
	defer conn.Close()

	live, cancel := s.service.Subscribe(64)
	defer cancel()

	last, _ := strconv.ParseInt(conn.Query("since", "0"), 10, 64)
	for _, event := range s.service.Events(last) {
		if err := conn.WriteJSON(event); err != nil {
			return
		}
		last = event.Seq
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case event, ok := <-live:
			if !ok {
				return
			}
			if event.Seq <= last {
				continue
			}
			if err := conn.WriteJSON(event); err != nil {
				s.logger.Debug().Err(err).Msg("websocket write failed")
				return
			}
			last = event.Seq
		}
	}
}

func (s *Server) requestLogger(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()

	status := c.Response().StatusCode()
	var fe *fiber.Error
	if errors.As(err, &fe) {
		status = fe.Code
	} else if err != nil {
		status = fiber.StatusInternalServerError
	}

	evt := s.logger.Info()
	if status >= fiber.StatusInternalServerError {
		evt = s.logger.Error().Err(err)
	}
	evt.Str("method", c.Method()).
		Str("path", c.Path()).
		Int("status", status).
		Dur("duration", time.Since(start)).
		Msg("request")
	return err
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	return data, nil
}
