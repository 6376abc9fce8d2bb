// Package questionbank holds the question store the session core reads
// from: CRUD over the bank plus file import/export.
package questionbank

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"livequiz-service/internal/domain"
)

// Bank is the question persistence collaborator. The core treats it as
// request/response; it never participates in session locking.
type Bank interface {
	Create(ctx context.Context, q domain.Question) (domain.Question, error)
	CreateBatch(ctx context.Context, qs []domain.Question) ([]domain.Question, error)
	List(ctx context.Context, category string) ([]domain.Question, error)
	Get(ctx context.Context, id string) (domain.Question, error)
	Delete(ctx context.Context, id string) error
}

// MemoryBank is an in-memory Bank for tests, demos, and the no-Postgres
// mode.
type MemoryBank struct {
	mu        sync.RWMutex
	questions map[string]domain.Question
	order     []string
}

func NewMemoryBank() *MemoryBank {
	return &MemoryBank{questions: make(map[string]domain.Question)}
}

func (b *MemoryBank) Create(_ context.Context, q domain.Question) (domain.Question, error) {
	if err := q.Validate(); err != nil {
		return domain.Question{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	if _, ok := b.questions[q.ID]; !ok {
		b.order = append(b.order, q.ID)
	}
	b.questions[q.ID] = q
	return q, nil
}

func (b *MemoryBank) CreateBatch(ctx context.Context, qs []domain.Question) ([]domain.Question, error) {
	out := make([]domain.Question, 0, len(qs))
	for _, q := range qs {
		created, err := b.Create(ctx, q)
		if err != nil {
			return nil, err
		}
		out = append(out, created)
	}
	return out, nil
}

func (b *MemoryBank) List(_ context.Context, category string) ([]domain.Question, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]domain.Question, 0, len(b.order))
	for _, id := range b.order {
		q := b.questions[id]
		if category == "" || q.Category == category {
			out = append(out, q)
		}
	}
	return out, nil
}

func (b *MemoryBank) Get(_ context.Context, id string) (domain.Question, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	q, ok := b.questions[id]
	if !ok {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	return q, nil
}

func (b *MemoryBank) Delete(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.questions[id]; !ok {
		return domain.ErrQuestionNotFound
	}
	delete(b.questions, id)
	for i, known := range b.order {
		if known == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	return nil
}
