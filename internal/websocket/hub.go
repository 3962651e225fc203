package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/hearthd/hearth/domain/entities"
	"github.com/hearthd/hearth/satellite"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024 // 512KB for audio chunks
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Satellites authenticate with a device token before the upgrade.
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// SatelliteFactory builds the orchestrator for a freshly connected device.
// publishState pushes visible state changes back to the device.
type SatelliteFactory func(device satellite.Device, publishState func(entities.SatelliteState)) *satellite.Satellite

// Hub maintains the set of connected satellite devices and their
// orchestrators.
type Hub struct {
	// Registered clients by device id.
	clients map[string]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	mu sync.RWMutex

	factory   SatelliteFactory
	validator *MessageValidator
	logger    *zap.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(factory SatelliteFactory, logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		factory:    factory,
		validator:  NewMessageValidator(),
		logger:     logger,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.deviceID] = client
			h.mu.Unlock()
			h.logger.Info("Satellite connected", zap.String("deviceID", client.deviceID))

		case client := <-h.unregister:
			h.mu.Lock()
			if current, ok := h.clients[client.deviceID]; ok && current == client {
				delete(h.clients, client.deviceID)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Info("Satellite disconnected", zap.String("deviceID", client.deviceID))
		}
	}
}

// Satellite returns the orchestrator for a connected device
func (h *Hub) Satellite(deviceID string) (*satellite.Satellite, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	client, ok := h.clients[deviceID]
	if !ok {
		return nil, false
	}
	return client.sat, true
}

// ConnectedDevices lists the device ids of all connected satellites
func (h *Hub) ConnectedDevices() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	return ids
}

type WriteData struct {
	// MessageType is the type of the websocket message.
	// Expect websocket.TextMessage or websocket.BinaryMessage
	Type    int
	Payload []byte
}

// Client is one connected satellite device. It implements satellite.Device
// so the orchestrator can drive playback and receive events through the
// websocket connection.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan WriteData

	deviceID string
	logger   *zap.Logger

	// Orchestrator for this device, built on registration.
	sat *satellite.Satellite

	mutex sync.Mutex

	// Active audio stream for the in-flight pipeline run, nil when idle.
	audioChan chan []byte

	// Pending playback acknowledgement, nil when nothing is playing.
	played chan struct{}

	// Last wake word configuration reported by the device.
	config entities.SatelliteConfiguration
}

var _ satellite.Device = (*Client)(nil)

// HandleWebSocketWithAuth upgrades an authenticated request and registers
// the device with the hub.
func HandleWebSocketWithAuth(hub *Hub, c echo.Context, deviceID string, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	client := &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan WriteData, 256),
		deviceID: deviceID,
		logger:   logger,
	}
	client.sat = hub.factory(client, client.publishState)

	client.hub.register <- client

	go client.writePump()
	go client.readPump()

	return nil
}

// ID implements satellite.Device
func (c *Client) ID() string {
	return c.deviceID
}

// Announce implements satellite.Device. It blocks until the device reports
// the announcement played.
func (c *Client) Announce(ctx context.Context, announcement entities.Announcement) error {
	return c.playAnnouncement(ctx, MessageTypeAnnounce, announcement)
}

// StartConversation implements satellite.Device. The device opens its
// microphone after playback and follows up with a run-start message.
func (c *Client) StartConversation(ctx context.Context, announcement entities.Announcement) error {
	return c.playAnnouncement(ctx, MessageTypeStartConversation, announcement)
}

func (c *Client) playAnnouncement(ctx context.Context, messageType MessageType, announcement entities.Announcement) error {
	c.mutex.Lock()
	if c.played != nil {
		c.mutex.Unlock()
		return fmt.Errorf("another announcement is already playing")
	}
	played := make(chan struct{})
	c.played = played
	c.mutex.Unlock()

	defer func() {
		c.mutex.Lock()
		c.played = nil
		c.mutex.Unlock()
	}()

	if err := c.sendJSON(CreateAnnouncementMessage(messageType, announcement)); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-played:
		return nil
	}
}

// OnPipelineEvent implements satellite.Device
func (c *Client) OnPipelineEvent(event entities.PipelineEvent) {
	if err := c.sendJSON(CreateEventMessage(event)); err != nil {
		c.logger.Warn("Dropped pipeline event",
			zap.String("deviceID", c.deviceID),
			zap.Error(err))
	}
}

// Configuration implements satellite.Device
func (c *Client) Configuration() entities.SatelliteConfiguration {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.config
}

// SetConfiguration implements satellite.Device
func (c *Client) SetConfiguration(ctx context.Context, config entities.SatelliteConfiguration) error {
	if err := c.sendJSON(&ConfigurationMessage{
		BaseMessage:   baseMessage(MessageTypeSetConfiguration),
		Configuration: config,
	}); err != nil {
		return err
	}

	c.mutex.Lock()
	c.config = config
	c.mutex.Unlock()
	return nil
}

// publishState pushes a visible state change to the device
func (c *Client) publishState(state entities.SatelliteState) {
	if err := c.sendJSON(CreateStateMessage(state)); err != nil {
		c.logger.Warn("Dropped state update",
			zap.String("deviceID", c.deviceID),
			zap.Error(err))
	}
}

// sendJSON queues a message without blocking the caller
func (c *Client) sendJSON(message interface{}) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	select {
	case c.send <- WriteData{Type: websocket.TextMessage, Payload: payload}:
		return nil
	default:
		return fmt.Errorf("send buffer full")
	}
}

func (c *Client) sendError(code string, err error) {
	if sendErr := c.sendJSON(CreateErrorMessage(code, err.Error())); sendErr != nil {
		c.logger.Warn("Dropped error message", zap.String("deviceID", c.deviceID))
	}
}

// readPump pumps messages from the websocket connection to the hub.
func (c *Client) readPump() {
	defer func() {
		c.closeAudioStream()
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		switch messageType {
		case websocket.TextMessage:
			c.processMessage(message)
		case websocket.BinaryMessage:
			c.processAudioFrame(message)
		default:
			c.logger.Warn("Received unknown message type", zap.Int("type", messageType))
		}
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// processMessage dispatches a parsed control message from the device
func (c *Client) processMessage(message []byte) {
	parsed, err := c.hub.validator.ValidateMessage(message)
	if err != nil {
		c.logger.Warn("Rejected device message",
			zap.String("deviceID", c.deviceID),
			zap.Error(err))
		c.sendError("invalid-message", err)
		return
	}

	switch msg := parsed.(type) {
	case *RunStartMessage:
		c.handleRunStart(msg)
	case *ConfigurationMessage:
		c.mutex.Lock()
		c.config = msg.Configuration
		c.mutex.Unlock()
		c.logger.Debug("Device configuration updated",
			zap.String("deviceID", c.deviceID),
			zap.Int("availableWakeWords", len(msg.Configuration.AvailableWakeWords)))
	case *PingMessage:
		c.sendJSON(CreatePongMessage(msg.Data))
	case *BaseMessage:
		switch msg.Type {
		case MessageTypeAudioEnd:
			c.closeAudioStream()
		case MessageTypePlayed:
			c.handlePlayed()
		case MessageTypeTTSFinished:
			c.sat.TTSResponseFinished()
		}
	}
}

// handleRunStart starts one pipeline run over the binary frames that follow
func (c *Client) handleRunStart(msg *RunStartMessage) {
	c.mutex.Lock()
	if c.audioChan != nil {
		c.mutex.Unlock()
		c.sendError("run-already-active", fmt.Errorf("a pipeline run is already streaming"))
		return
	}
	audio := make(chan []byte, 64)
	c.audioChan = audio
	c.mutex.Unlock()

	c.logger.Debug("Pipeline run requested",
		zap.String("deviceID", c.deviceID),
		zap.String("startStage", string(msg.StartStage)),
		zap.String("endStage", string(msg.EndStage)))

	go func() {
		err := c.sat.AcceptPipelineFromSatellite(context.Background(), audio, msg.StartStage, msg.EndStage, msg.WakeWordPhrase)

		c.mutex.Lock()
		if c.audioChan == audio {
			c.audioChan = nil
		}
		c.mutex.Unlock()

		if err != nil {
			c.logger.Error("Pipeline run failed",
				zap.String("deviceID", c.deviceID),
				zap.Error(err))
			c.sendError("pipeline-failed", err)
		}
	}()
}

// processAudioFrame forwards one binary audio frame into the active run
func (c *Client) processAudioFrame(data []byte) {
	c.mutex.Lock()
	audio := c.audioChan
	c.mutex.Unlock()

	if audio == nil {
		c.logger.Warn("Received audio frame with no active run",
			zap.String("deviceID", c.deviceID))
		return
	}

	frame := make([]byte, len(data))
	copy(frame, data)

	select {
	case audio <- frame:
	default:
		c.logger.Warn("Dropped audio frame, stream backlogged",
			zap.String("deviceID", c.deviceID),
			zap.Int("size", len(frame)))
	}
}

// closeAudioStream ends the active audio stream, letting the STT stage
// finalize its transcript.
func (c *Client) closeAudioStream() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.audioChan != nil {
		close(c.audioChan)
		c.audioChan = nil
	}
}

// handlePlayed resolves the pending playback acknowledgement
func (c *Client) handlePlayed() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.played != nil {
		close(c.played)
		c.played = nil
	}
}
