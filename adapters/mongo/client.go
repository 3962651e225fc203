package mongo

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const (
	defaultURI      = "mongodb://localhost:27017"
	defaultDatabase = "hearth"

	connectTimeout = 10 * time.Second
	selectTimeout  = 5 * time.Second
	maxIdleTime    = 30 * time.Minute
)

// Config holds the MongoDB connection settings
type Config struct {
	URI      string
	Database string
}

// NewConfigFromEnv creates a Config from environment variables, falling
// back to a local development instance.
func NewConfigFromEnv() Config {
	config := Config{
		URI:      os.Getenv("HEARTH_MONGODB_URI"),
		Database: os.Getenv("HEARTH_MONGODB_DATABASE"),
	}
	if config.URI == "" {
		config.URI = defaultURI
	}
	if config.Database == "" {
		config.Database = defaultDatabase
	}
	return config
}

// Client wraps the MongoDB client and the database the hub stores its
// collections in
type Client struct {
	*mongo.Client
	Database *mongo.Database
	logger   *zap.Logger
}

// NewClient connects to MongoDB using the environment configuration and
// verifies the connection with a ping.
func NewClient(logger *zap.Logger) (*Client, error) {
	config := NewConfigFromEnv()

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(config.URI).
		SetMaxPoolSize(10).
		SetMaxConnIdleTime(maxIdleTime).
		SetServerSelectionTimeout(selectTimeout).
		SetConnectTimeout(connectTimeout))
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("mongodb ping: %w", err)
	}

	logger.Info("Connected to MongoDB", zap.String("database", config.Database))

	return &Client{
		Client:   client,
		Database: client.Database(config.Database),
		logger:   logger,
	}, nil
}

// Close disconnects from MongoDB
func (c *Client) Close(ctx context.Context) error {
	if err := c.Client.Disconnect(ctx); err != nil {
		c.logger.Error("Failed to disconnect from MongoDB", zap.Error(err))
		return err
	}
	c.logger.Info("Disconnected from MongoDB")
	return nil
}
