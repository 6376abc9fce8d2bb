package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"livequiz-service/internal/domain"
)

type sessionRow struct {
	bun.BaseModel `bun:"table:quiz_sessions"`

	ID                   string               `bun:"id,pk"`
	HostID               string               `bun:"host_id"`
	Phase                string               `bun:"phase"`
	CurrentQuestionIndex int                  `bun:"current_question_index"`
	QuestionIDs          []string             `bun:"question_ids,type:jsonb"`
	Participants         []domain.Participant `bun:"participants,type:jsonb"`
	StartedAt            *time.Time           `bun:"started_at"`
	EndedAt              *time.Time           `bun:"ended_at"`
}

func (r sessionRow) toDomain() domain.SessionRecord {
	return domain.SessionRecord{
		ID:                   r.ID,
		HostID:               r.HostID,
		Phase:                domain.Phase(r.Phase),
		CurrentQuestionIndex: r.CurrentQuestionIndex,
		QuestionIDs:          r.QuestionIDs,
		Participants:         r.Participants,
		StartedAt:            r.StartedAt,
		EndedAt:              r.EndedAt,
	}
}

// SessionArchive is the durable record of quiz sessions: upserted on
// create and end, read back by id or host for the REST surface.
type SessionArchive struct {
	db *bun.DB
}

func NewSessionArchive(db *bun.DB) *SessionArchive {
	return &SessionArchive{db: db}
}

func (a *SessionArchive) ArchiveSession(ctx context.Context, rec domain.SessionRecord) error {
	row := sessionRow{
		ID:                   rec.ID,
		HostID:               rec.HostID,
		Phase:                string(rec.Phase),
		CurrentQuestionIndex: rec.CurrentQuestionIndex,
		QuestionIDs:          rec.QuestionIDs,
		Participants:         rec.Participants,
		StartedAt:            rec.StartedAt,
		EndedAt:              rec.EndedAt,
	}
	_, err := a.db.NewInsert().
		Model(&row).
		On("CONFLICT (id) DO UPDATE").
		Set("phase = EXCLUDED.phase").
		Set("current_question_index = EXCLUDED.current_question_index").
		Set("participants = EXCLUDED.participants").
		Set("started_at = EXCLUDED.started_at").
		Set("ended_at = EXCLUDED.ended_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("archive session: %w", err)
	}
	return nil
}

func (a *SessionArchive) GetSession(ctx context.Context, id string) (domain.SessionRecord, error) {
	var row sessionRow
	err := a.db.NewSelect().Model(&row).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.SessionRecord{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.SessionRecord{}, fmt.Errorf("get session: %w", err)
	}
	return row.toDomain(), nil
}

func (a *SessionArchive) ListByHost(ctx context.Context, hostID string) ([]domain.SessionRecord, error) {
	var rows []sessionRow
	err := a.db.NewSelect().Model(&rows).Where("host_id = ?", hostID).Order("started_at DESC NULLS LAST").Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	out := make([]domain.SessionRecord, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}
