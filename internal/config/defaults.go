package config

import "time"

const (
	// Synthetic participant profile
	AIFullName   = "Blink Chat AI"
	AIEmail      = "blinkchat@ai.com"
	AIProfilePic = "/ai-avatar.png"

	DefaultSystemPrompt = "You are Blink Chat AI, a friendly and helpful AI assistant. " +
		"Keep your responses casual, fun, and engaging. Be concise but informative."

	DefaultDatabaseDSN = "host=localhost user=user password=password dbname=pairchatdb port=5432 sslmode=disable"

	// Live channel
	WriteWait      = 10 * time.Second
	PongWait       = 60 * time.Second
	PingPeriod     = (PongWait * 9) / 10
	MaxMessageSize = 512
	SendBufferSize = 256

	// Client reconnect policy
	ReconnectAttempts = 5
	ReconnectDelay    = time.Second
)
