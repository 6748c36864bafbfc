package model

// ConnectionState is the tri-state status of the live event channel.
type ConnectionState string

const (
	Connected    ConnectionState = "connected"
	Reconnecting ConnectionState = "reconnecting"
	Disconnected ConnectionState = "disconnected"
)
