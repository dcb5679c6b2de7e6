// internal/historian/historian.go
package historian

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/bingo/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Game statuses written to the games table.
const (
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusAbandoned  = "abandoned"
)

// Options tunes a Service. Zero fields take the defaults.
type Options struct {
	Queue         string
	BatchSize     int
	FlushInterval time.Duration
	Inactivity    time.Duration
	// PopTimeout bounds each blocking pop so the loop notices cancellation.
	PopTimeout time.Duration
	// SweepEvery is how often stale in-progress games are marked abandoned.
	SweepEvery time.Duration
}

func (o *Options) defaults() {
	if o.Queue == "" {
		o.Queue = "bingo_actions"
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 20
	}
	if o.FlushInterval <= 0 {
		o.FlushInterval = 500 * time.Millisecond
	}
	if o.Inactivity <= 0 {
		o.Inactivity = 10 * time.Minute
	}
	if o.PopTimeout <= 0 {
		o.PopTimeout = 3 * time.Second
	}
	if o.SweepEvery <= 0 {
		o.SweepEvery = time.Minute
	}
}

// Service drains the room action queue into PostgreSQL.
type Service struct {
	rdb    *redis.Client
	pool   *pgxpool.Pool
	logger *logrus.Logger
	opts   Options
	now    func() time.Time

	batchMu sync.Mutex
	batch   []models.RoomAction
}

// New builds a Service reading from rdb and writing through pool.
func New(rdb *redis.Client, pool *pgxpool.Pool, logger *logrus.Logger, opts Options) *Service {
	opts.defaults()
	return &Service{
		rdb:    rdb,
		pool:   pool,
		logger: logger,
		opts:   opts,
		now:    time.Now,
	}
}

// Run consumes the queue until ctx is cancelled, then flushes what is left.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Infof("Historian: reading from %s, batch size %d, flush every %s",
		s.opts.Queue, s.opts.BatchSize, s.opts.FlushInterval)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.inactivityLoop(ctx)
	}()

	s.readLoop(ctx)
	wg.Wait()

	flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.Flush(flushCtx); err != nil {
		return fmt.Errorf("final flush: %w", err)
	}
	s.logger.Info("Historian: stopped")
	return nil
}

func (s *Service) readLoop(ctx context.Context) {
	ticker := time.NewTicker(s.opts.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Flush(ctx); err != nil {
				s.logger.Warnf("Historian: flush failed: %v", err)
			}
		default:
			res, err := s.rdb.BLPop(ctx, s.opts.PopTimeout, s.opts.Queue).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) || ctx.Err() != nil {
					continue
				}
				s.logger.Warnf("Historian: BLPOP error: %v", err)
				time.Sleep(time.Second)
				continue
			}
			// BLPop returns [queue, value]
			if len(res) != 2 {
				continue
			}
			action, err := Decode([]byte(res[1]))
			if err != nil {
				s.logger.Warnf("Historian: dropping malformed action: %v", err)
				continue
			}
			if s.appendToBatch(action) >= s.opts.BatchSize {
				if err := s.Flush(ctx); err != nil {
					s.logger.Warnf("Historian: flush failed: %v", err)
				}
			}
		}
	}
}

// Decode parses one queued action.
func Decode(data []byte) (models.RoomAction, error) {
	var a models.RoomAction
	if err := json.Unmarshal(data, &a); err != nil {
		return a, fmt.Errorf("decode room action: %w", err)
	}
	if a.RoomCode == "" || a.ActionType == "" {
		return a, errors.New("room action without room code or type")
	}
	return a, nil
}

func (s *Service) appendToBatch(a models.RoomAction) int {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	s.batch = append(s.batch, a)
	return len(s.batch)
}

// Flush writes the pending batch in one transaction. On failure the batch is put back
// in front of anything queued since.
func (s *Service) Flush(ctx context.Context) error {
	s.batchMu.Lock()
	if len(s.batch) == 0 {
		s.batchMu.Unlock()
		return nil
	}
	toWrite := s.batch
	s.batch = nil
	s.batchMu.Unlock()

	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, a := range toWrite {
			if err := insertActionTx(ctx, tx, a); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.batchMu.Lock()
		s.batch = append(toWrite, s.batch...)
		s.batchMu.Unlock()
		return err
	}
	s.logger.Debugf("Historian: flushed %d actions", len(toWrite))
	return nil
}

// StatusFor maps an action type to the status it leaves its game in.
func StatusFor(actionType string) string {
	switch actionType {
	case models.ActionGameCompleted:
		return StatusCompleted
	case models.ActionGameAbandoned:
		return StatusAbandoned
	default:
		return StatusInProgress
	}
}

func insertActionTx(ctx context.Context, tx pgx.Tx, a models.RoomAction) error {
	at := time.UnixMilli(a.Timestamp).UTC()

	var gameID *uuid.UUID
	if a.GameID != uuid.Nil {
		id := a.GameID
		gameID = &id

		status := StatusFor(a.ActionType)
		var completedAt *time.Time
		if status != StatusInProgress {
			completedAt = &at
		}
		// terminal statuses are sticky
		upsert := `
			INSERT INTO games (id, room_code, status, started_at, completed_at, last_action_at)
			VALUES ($1, $2, $3, $4, $5, $4)
			ON CONFLICT (id) DO UPDATE
			SET status = CASE WHEN games.status = 'in_progress' THEN EXCLUDED.status ELSE games.status END,
			    completed_at = COALESCE(games.completed_at, EXCLUDED.completed_at),
			    last_action_at = GREATEST(games.last_action_at, EXCLUDED.last_action_at)`
		if _, err := tx.Exec(ctx, upsert, a.GameID, a.RoomCode, status, at, completedAt); err != nil {
			return fmt.Errorf("upsert game %s: %w", a.GameID, err)
		}
	}

	payload, err := json.Marshal(a.ActionPayload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	q := `
		INSERT INTO room_actions (room_code, game_id, action_index, actor_user_id, action_type, action_payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := tx.Exec(ctx, q, a.RoomCode, gameID, a.ActionIndex, a.ActorUserID, a.ActionType, payload, at); err != nil {
		return fmt.Errorf("insert action %s #%d: %w", a.RoomCode, a.ActionIndex, err)
	}
	return nil
}

func (s *Service) inactivityLoop(ctx context.Context) {
	ticker := time.NewTicker(s.opts.SweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.MarkInactive(ctx, s.now()); err != nil {
				s.logger.Warnf("Historian: inactivity sweep failed: %v", err)
			}
		}
	}
}

// MarkInactive abandons in-progress games whose last action is older than the
// inactivity window and returns their ids.
func (s *Service) MarkInactive(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	q := `
		UPDATE games SET status = 'abandoned', completed_at = $1
		WHERE status = 'in_progress' AND last_action_at < $2
		RETURNING id`
	rows, err := s.pool.Query(ctx, q, now, now.Add(-s.opts.Inactivity))
	if err != nil {
		return nil, fmt.Errorf("mark inactive games: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("mark inactive games: %w", err)
	}
	for _, id := range ids {
		s.logger.Infof("Historian: game %s marked abandoned after inactivity", id)
	}
	return ids, nil
}
