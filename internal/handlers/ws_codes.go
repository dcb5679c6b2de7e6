// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the room socket.
const (
	BadSubprotocolError   = 3000 // client did not negotiate the bingo subprotocol
	InvalidAuthTokenError = 3001 // token missing, invalid or expired
	ServerShuttingDown    = 3002 // coordinator stopped while the socket was open
)
