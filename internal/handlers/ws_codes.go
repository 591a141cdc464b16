// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the matchmaking socket.
const (
	BadSubprotocolError = 3000 // Client connected without the matchmaking subprotocol.
	EngineStoppedError  = 3001 // The matchmaking engine is shutting down.
	MalformedFrameError = 3002 // Client sent a binary frame.
)
