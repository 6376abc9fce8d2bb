package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"livequiz-service/internal/domain"
)

type questionRow struct {
	bun.BaseModel `bun:"table:questions"`

	ID            string   `bun:"id,pk"`
	Category      string   `bun:"category"`
	Prompt        string   `bun:"question"`
	Options       []string `bun:"options,type:jsonb"`
	CorrectAnswer string   `bun:"correct_answer"`
}

func (r questionRow) toDomain() domain.Question {
	return domain.Question{
		ID:            r.ID,
		Category:      r.Category,
		Prompt:        r.Prompt,
		Options:       r.Options,
		CorrectAnswer: r.CorrectAnswer,
	}
}

func rowFromQuestion(q domain.Question) questionRow {
	return questionRow{
		ID:            q.ID,
		Category:      q.Category,
		Prompt:        q.Prompt,
		Options:       q.Options,
		CorrectAnswer: q.CorrectAnswer,
	}
}

// QuestionBank is the Postgres-backed question store.
type QuestionBank struct {
	db *bun.DB
}

func NewQuestionBank(db *bun.DB) *QuestionBank {
	return &QuestionBank{db: db}
}

func (b *QuestionBank) Create(ctx context.Context, q domain.Question) (domain.Question, error) {
	if err := q.Validate(); err != nil {
		return domain.Question{}, err
	}
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	row := rowFromQuestion(q)
	if _, err := b.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return domain.Question{}, fmt.Errorf("insert question: %w", err)
	}
	return q, nil
}

func (b *QuestionBank) CreateBatch(ctx context.Context, qs []domain.Question) ([]domain.Question, error) {
	if len(qs) == 0 {
		return nil, nil
	}
	rows := make([]questionRow, 0, len(qs))
	out := make([]domain.Question, 0, len(qs))
	for _, q := range qs {
		if err := q.Validate(); err != nil {
			return nil, err
		}
		if q.ID == "" {
			q.ID = uuid.NewString()
		}
		rows = append(rows, rowFromQuestion(q))
		out = append(out, q)
	}
	if _, err := b.db.NewInsert().Model(&rows).Exec(ctx); err != nil {
		return nil, fmt.Errorf("insert questions: %w", err)
	}
	return out, nil
}

func (b *QuestionBank) List(ctx context.Context, category string) ([]domain.Question, error) {
	var rows []questionRow
	query := b.db.NewSelect().Model(&rows).Order("id")
	if category != "" {
		query = query.Where("category = ?", category)
	}
	if err := query.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	out := make([]domain.Question, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}

func (b *QuestionBank) Get(ctx context.Context, id string) (domain.Question, error) {
	var row questionRow
	err := b.db.NewSelect().Model(&row).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	if err != nil {
		return domain.Question{}, fmt.Errorf("get question: %w", err)
	}
	return row.toDomain(), nil
}

func (b *QuestionBank) Delete(ctx context.Context, id string) error {
	res, err := b.db.NewDelete().Model((*questionRow)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete question: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrQuestionNotFound
	}
	return nil
}
