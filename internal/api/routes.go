package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/hearthd/hearth/domain/entities"
	"github.com/hearthd/hearth/domain/repositories"
	"github.com/hearthd/hearth/internal/auth"
	"github.com/hearthd/hearth/internal/websocket"
	"github.com/hearthd/hearth/satellite"
)

// Server bundles the dependencies of the HTTP surface
type Server struct {
	hub       *websocket.Hub
	devices   repositories.DeviceRepository
	tts       repositories.TextToSpeech
	pipelines repositories.PipelineStore
	logger    *zap.Logger
}

// NewServer creates the HTTP API server
func NewServer(
	hub *websocket.Hub,
	devices repositories.DeviceRepository,
	tts repositories.TextToSpeech,
	pipelines repositories.PipelineStore,
	logger *zap.Logger,
) *Server {
	return &Server{
		hub:       hub,
		devices:   devices,
		tts:       tts,
		pipelines: pipelines,
		logger:    logger,
	}
}

// InitRoutes initializes all API routes
func (s *Server) InitRoutes(e *echo.Echo) {
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "hearth-hub",
		})
	})

	e.GET("/api/tts_proxy/:filename", s.ttsProxy)

	v1 := e.Group("/api/v1")

	v1.POST("/device/auth", s.deviceAuth)

	v1.GET("/satellites", s.listSatellites)
	v1.GET("/satellites/:device_id/state", s.satelliteState)
	v1.POST("/satellites/:device_id/announce", s.announce)
	v1.POST("/satellites/:device_id/start_conversation", s.startConversation)
	v1.POST("/satellites/:device_id/ask_question", s.askQuestion)
	v1.POST("/satellites/:device_id/intercept_wake_word", s.interceptWakeWord)
	v1.GET("/satellites/:device_id/configuration", s.getConfiguration)
	v1.PUT("/satellites/:device_id/configuration", s.setConfiguration)

	v1.GET("/pipelines", s.listPipelines)

	// WebSocket endpoint with JWT validation
	e.GET("/ws", s.websocketWithAuth)
}

// deviceAuth exchanges device credentials for a JWT
func (s *Server) deviceAuth(c echo.Context) error {
	var req DeviceAuthRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Error("Failed to bind device auth request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	if req.SerialNumber == "" || req.SecretKey == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "Serial number and secret key are required",
		})
	}

	device, err := s.devices.ValidateDevice(req.SerialNumber, req.SecretKey)
	if err != nil {
		s.logger.Warn("Device authentication failed",
			zap.String("serial_number", req.SerialNumber),
			zap.Error(err))
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "authentication_failed",
			Message: "Invalid device credentials",
		})
	}

	token, err := auth.GenerateDeviceToken(device.ID)
	if err != nil {
		s.logger.Error("Failed to generate device token",
			zap.String("device_id", device.ID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_generation_failed",
			Message: "Failed to generate authentication token",
		})
	}

	s.logger.Info("Device authenticated successfully",
		zap.String("device_id", device.ID),
		zap.String("serial_number", device.SerialNumber))

	return c.JSON(http.StatusOK, DeviceAuthResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(24 * time.Hour),
		DeviceID:  device.ID,
	})
}

func (s *Server) listSatellites(c echo.Context) error {
	return c.JSON(http.StatusOK, SatelliteListResponse{Devices: s.hub.ConnectedDevices()})
}

func (s *Server) satelliteState(c echo.Context) error {
	sat, err := s.connectedSatellite(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, StateResponse{
		DeviceID: c.Param("device_id"),
		State:    sat.State(),
	})
}

func (s *Server) announce(c echo.Context) error {
	sat, err := s.connectedSatellite(c)
	if err != nil {
		return err
	}

	var req satellite.AnnounceRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid_request", err)
	}

	if err := sat.Announce(c.Request().Context(), req); err != nil {
		return s.operationError(c, err)
	}
	return c.NoContent(http.StatusOK)
}

func (s *Server) startConversation(c echo.Context) error {
	sat, err := s.connectedSatellite(c)
	if err != nil {
		return err
	}

	var req satellite.StartConversationRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid_request", err)
	}

	if err := sat.StartConversation(c.Request().Context(), req); err != nil {
		return s.operationError(c, err)
	}
	return c.NoContent(http.StatusOK)
}

func (s *Server) askQuestion(c echo.Context) error {
	sat, err := s.connectedSatellite(c)
	if err != nil {
		return err
	}

	var req satellite.AskQuestionRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid_request", err)
	}

	answer, err := sat.AskQuestion(c.Request().Context(), req)
	if err != nil {
		return s.operationError(c, err)
	}
	return c.JSON(http.StatusOK, answer)
}

func (s *Server) interceptWakeWord(c echo.Context) error {
	sat, err := s.connectedSatellite(c)
	if err != nil {
		return err
	}

	phrase, err := sat.InterceptWakeWord(c.Request().Context())
	if err != nil {
		return s.operationError(c, err)
	}
	return c.JSON(http.StatusOK, InterceptWakeWordResponse{WakeWordPhrase: phrase})
}

func (s *Server) getConfiguration(c echo.Context) error {
	sat, err := s.connectedSatellite(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sat.Configuration())
}

func (s *Server) setConfiguration(c echo.Context) error {
	sat, err := s.connectedSatellite(c)
	if err != nil {
		return err
	}

	var config entities.SatelliteConfiguration
	if err := c.Bind(&config); err != nil {
		return badRequest(c, "invalid_request", err)
	}

	if err := sat.SetConfiguration(c.Request().Context(), config); err != nil {
		return s.operationError(c, err)
	}
	return c.NoContent(http.StatusOK)
}

func (s *Server) listPipelines(c echo.Context) error {
	return c.JSON(http.StatusOK, PipelineListResponse{Pipelines: s.pipelines.List()})
}

// ttsProxy streams synthesized audio for a pending synthesis token
func (s *Server) ttsProxy(c echo.Context) error {
	token := strings.TrimSuffix(c.Param("filename"), ".mp3")

	stream, ok := s.tts.Stream(token)
	if !ok {
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "unknown_token",
			Message: "No synthesis stream for this token",
		})
	}

	audio, err := stream.Synthesize(c.Request().Context())
	if err != nil {
		s.logger.Error("Synthesis failed", zap.String("token", token), zap.Error(err))
		return c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "synthesis_failed",
			Message: "Text to speech synthesis failed",
		})
	}

	c.Response().Header().Set(echo.HeaderContentType, "audio/mpeg")
	c.Response().WriteHeader(http.StatusOK)

	for chunk := range audio {
		if _, err := c.Response().Write(chunk); err != nil {
			return err
		}
		c.Response().Flush()
	}
	return nil
}

// connectedSatellite resolves the device_id path param to a connected
// satellite's orchestrator, answering 404 when the device is offline.
func (s *Server) connectedSatellite(c echo.Context) (*satellite.Satellite, error) {
	deviceID := c.Param("device_id")
	sat, ok := s.hub.Satellite(deviceID)
	if !ok {
		return nil, c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "device_not_connected",
			Message: "Satellite is not connected",
		})
	}
	return sat, nil
}

// operationError maps satellite operation failures to HTTP statuses
func (s *Server) operationError(c echo.Context, err error) error {
	var configErr *satellite.ConfigurationError
	var notFoundErr *satellite.EntityNotFoundError
	var validationErr *entities.ValidationError

	switch {
	case errors.Is(err, satellite.ErrSatelliteBusy):
		return c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "satellite_busy",
			Message: err.Error(),
		})
	case errors.Is(err, satellite.ErrNoAnswer):
		return c.JSON(http.StatusRequestTimeout, ErrorResponse{
			Error:   "no_answer",
			Message: err.Error(),
		})
	case errors.As(err, &configErr), errors.As(err, &notFoundErr), errors.As(err, &validationErr):
		return badRequest(c, "invalid_configuration", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return c.JSON(http.StatusRequestTimeout, ErrorResponse{
			Error:   "cancelled",
			Message: err.Error(),
		})
	default:
		s.logger.Error("Satellite operation failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "operation_failed",
			Message: err.Error(),
		})
	}
}

func badRequest(c echo.Context, code string, err error) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   code,
		Message: err.Error(),
	})
}

// websocketWithAuth handles WebSocket connections with JWT authentication
func (s *Server) websocketWithAuth(c echo.Context) error {
	var token string
	authHeader := c.Request().Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		token = strings.TrimPrefix(authHeader, "Bearer ")
	}
	if token == "" {
		// Embedded websocket clients cannot always set headers.
		token = c.QueryParam("token")
	}

	if token == "" {
		s.logger.Warn("WebSocket connection rejected: missing token")
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "missing_token",
			Message: "JWT token is required",
		})
	}

	claims, err := auth.ValidateToken(token)
	if err != nil {
		s.logger.Warn("WebSocket connection rejected: invalid token", zap.Error(err))
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "invalid_token",
			Message: "Invalid or expired JWT token",
		})
	}

	if claims.Role != "device" {
		s.logger.Warn("WebSocket connection rejected: invalid role",
			zap.String("role", claims.Role))
		return c.JSON(http.StatusForbidden, ErrorResponse{
			Error:   "invalid_role",
			Message: "Only device tokens are allowed for WebSocket connections",
		})
	}

	if claims.DeviceID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_token_claims",
			Message: "Device ID not found in token",
		})
	}

	s.logger.Info("WebSocket connection authenticated",
		zap.String("device_id", claims.DeviceID))

	return websocket.HandleWebSocketWithAuth(s.hub, c, claims.DeviceID, s.logger)
}
