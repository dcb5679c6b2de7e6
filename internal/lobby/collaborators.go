// internal/lobby/collaborators.go
package lobby

import (
	"context"

	"github.com/jason-s-yu/bingo/internal/models"
)

// ResultRecorder persists a finished game. It is called off the event loop and its
// failure never changes room state.
type ResultRecorder interface {
	RecordResult(ctx context.Context, result models.GameResult) error
}

// ActionSink receives the room action log, in order.
type ActionSink interface {
	PublishAction(ctx context.Context, action models.RoomAction) error
}
