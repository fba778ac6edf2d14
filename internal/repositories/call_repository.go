package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"realtime-service/internal/apperrors"
	"realtime-service/internal/models"
)

// CallRepository persists the call signaling state machine.
type CallRepository interface {
	CreateCall(ctx context.Context, conversationID string, initiatorID int64, callType models.CallType) (models.Call, error)
	GetCall(ctx context.Context, callID string) (models.Call, error)
	AcceptCall(ctx context.Context, callID string, acceptorID int64) (models.Call, error)
	EndCall(ctx context.Context, callID string) (models.Call, error)
}

// CallRepo is a sqlx implementation of CallRepository.
type CallRepo struct {
	db *sqlx.DB
}

// NewCallRepo constructs a CallRepo.
func NewCallRepo(db *sqlx.DB) *CallRepo {
	return &CallRepo{db: db}
}

const callColumns = `id, conversation_id, initiator_id, type, status, started_at, ended_at`

// CreateCall persists a new call in INITIATED state.
func (r *CallRepo) CreateCall(ctx context.Context, conversationID string, initiatorID int64, callType models.CallType) (models.Call, error) {
	var call models.Call
	err := r.db.QueryRowxContext(ctx, `INSERT INTO calls (id, conversation_id, initiator_id, type, status)
        VALUES ($1, $2, $3, $4, $5) RETURNING `+callColumns,
		uuid.NewString(), conversationID, initiatorID, callType, models.CallInitiated).StructScan(&call)
	return call, err
}

// GetCall fetches a call by id.
func (r *CallRepo) GetCall(ctx context.Context, callID string) (models.Call, error) {
	var call models.Call
	err := r.db.GetContext(ctx, &call, `SELECT `+callColumns+` FROM calls WHERE id=$1`, callID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Call{}, apperrors.ErrCallNotFound
	}
	return call, err
}

// AcceptCall moves the call to ACTIVE and records the acceptor. Accepting an
// ENDED call fails without changing state; the guard in the UPDATE keeps the
// machine from ever moving backward.
func (r *CallRepo) AcceptCall(ctx context.Context, callID string, acceptorID int64) (models.Call, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Call{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var call models.Call
	err = tx.QueryRowxContext(ctx, `UPDATE calls SET status=$2 WHERE id=$1 AND status <> $3
        RETURNING `+callColumns, callID, models.CallActive, models.CallEnded).StructScan(&call)
	if errors.Is(err, sql.ErrNoRows) {
		tx.Rollback()
		if _, getErr := r.GetCall(ctx, callID); getErr != nil {
			return models.Call{}, getErr
		}
		return models.Call{}, apperrors.ErrCallEnded
	}
	if err != nil {
		return models.Call{}, err
	}

	if _, err = tx.ExecContext(ctx, `INSERT INTO call_participants (call_id, user_id) VALUES ($1, $2)
        ON CONFLICT (call_id, user_id) DO NOTHING`, callID, acceptorID); err != nil {
		return models.Call{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.Call{}, err
	}
	return call, nil
}

// EndCall moves the call to ENDED and stamps ended_at. Ending an already-ENDED
// call is a no-op returning the terminal row, so duplicate signals from lossy
// transports are tolerated.
func (r *CallRepo) EndCall(ctx context.Context, callID string) (models.Call, error) {
	var call models.Call
	err := r.db.QueryRowxContext(ctx, `UPDATE calls SET status=$2, ended_at=NOW() WHERE id=$1 AND status <> $2
        RETURNING `+callColumns, callID, models.CallEnded).StructScan(&call)
	if errors.Is(err, sql.ErrNoRows) {
		return r.GetCall(ctx, callID)
	}
	return call, err
}
