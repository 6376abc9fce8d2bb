package app_test

import (
	"errors"
	"testing"
	"time"

	"livequiz-service/internal/app"
	"livequiz-service/internal/domain"
)

func twoQuestions() []domain.Question {
	return []domain.Question{
		{
			ID:            "q1",
			Category:      "Geography",
			Prompt:        "Capital of France?",
			Options:       []string{"Paris", "Lyon", "Nice", "Lille"},
			CorrectAnswer: "Paris",
		},
		{
			ID:            "q2",
			Category:      "Geography",
			Prompt:        "Capital of Spain?",
			Options:       []string{"Seville", "Madrid", "Valencia", "Bilbao"},
			CorrectAnswer: "Madrid",
		},
	}
}

func TestPhaseTransitions(t *testing.T) {
	s := app.NewSession("quiz-1", "host-1", twoQuestions())
	if s.Phase() != domain.PhasePending {
		t.Fatalf("expected pending, got %s", s.Phase())
	}

	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if s.Phase() != domain.PhaseActive {
		t.Fatalf("expected active, got %s", s.Phase())
	}
	if err := s.Start(); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition on double start, got %v", err)
	}

	if _, err := s.End(); err != nil {
		t.Fatalf("end: %v", err)
	}
	if s.Phase() != domain.PhaseEnded {
		t.Fatalf("expected ended, got %s", s.Phase())
	}
	if _, err := s.End(); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition on double end, got %v", err)
	}
	if err := s.Start(); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("ended session must not restart, got %v", err)
	}
}

func TestPendingCanEndDirectly(t *testing.T) {
	s := app.NewSession("quiz-1", "host-1", twoQuestions())
	if _, err := s.End(); err != nil {
		t.Fatalf("pending -> ended should be allowed: %v", err)
	}
}

func TestStartRequiresQuestions(t *testing.T) {
	s := app.NewSession("quiz-1", "host-1", nil)
	if err := s.Start(); !errors.Is(err, domain.ErrEmptyQuiz) {
		t.Fatalf("expected ErrEmptyQuiz, got %v", err)
	}
	if s.Phase() != domain.PhasePending {
		t.Fatalf("failed start must not change phase, got %s", s.Phase())
	}
}

func TestAdvanceBounds(t *testing.T) {
	s := app.NewSession("quiz-1", "host-1", twoQuestions())

	if _, _, err := s.Advance(nil); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("advance before start should fail, got %v", err)
	}

	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	q, idx, err := s.Advance(nil)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if idx != 1 || q.ID != "q2" {
		t.Fatalf("expected q2 at index 1, got %s at %d", q.ID, idx)
	}
	if _, _, err := s.Advance(nil); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("advance past last question should fail, got %v", err)
	}
}

func TestAdvanceIndexMismatch(t *testing.T) {
	s := app.NewSession("quiz-1", "host-1", twoQuestions())
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	wrong := 2
	if _, _, err := s.Advance(&wrong); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected index mismatch rejection, got %v", err)
	}
	expected := 1
	if _, idx, err := s.Advance(&expected); err != nil || idx != 1 {
		t.Fatalf("expected advance to 1, got idx=%d err=%v", idx, err)
	}
}

func TestJoinOnlyWhileActive(t *testing.T) {
	s := app.NewSession("quiz-1", "host-1", twoQuestions())
	if _, _, _, err := s.Join("p1", "Alice"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("join before start should fail, got %v", err)
	}

	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, _, err := s.Advance(nil); err != nil {
		t.Fatalf("advance: %v", err)
	}

	// Late joiner observes the current question, not the first one.
	p, q, idx, err := s.Join("p1", "Alice")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if p.Score != 0 || !p.Connected {
		t.Fatalf("unexpected participant state: %+v", p)
	}
	if q.ID != "q2" || idx != 1 {
		t.Fatalf("late joiner should see q2 at 1, got %s at %d", q.ID, idx)
	}
}

func TestFirstSubmissionWins(t *testing.T) {
	s := app.NewSession("quiz-1", "host-1", twoQuestions())
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, _, _, err := s.Join("p1", "Alice"); err != nil {
		t.Fatalf("join: %v", err)
	}

	rec, total, err := s.SubmitAnswer(domain.ParticipantAnswer{
		QuizID: "quiz-1", ParticipantID: "p1", QuestionID: "q1", Answer: "Paris", TimeToAnswerMs: 1200,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !rec.IsCorrect || total != 10 {
		t.Fatalf("expected correct with total 10, got rec=%+v total=%d", rec, total)
	}

	_, total, err = s.SubmitAnswer(domain.ParticipantAnswer{
		QuizID: "quiz-1", ParticipantID: "p1", QuestionID: "q1", Answer: "Lyon",
	})
	if !errors.Is(err, domain.ErrDuplicateAnswer) {
		t.Fatalf("expected duplicate, got %v", err)
	}
	if total != 10 {
		t.Fatalf("duplicate must not change score, got %d", total)
	}
	if lb := s.Leaderboard(); lb.Entries[0].Score != 10 {
		t.Fatalf("leaderboard should keep 10, got %+v", lb.Entries)
	}
}

func TestStaleAnswerRejected(t *testing.T) {
	s := app.NewSession("quiz-1", "host-1", twoQuestions())
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, _, _, err := s.Join("p1", "Alice"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, _, err := s.Advance(nil); err != nil {
		t.Fatalf("advance: %v", err)
	}

	// Answer for the question that is no longer current must never be
	// scored against the current one.
	_, _, err := s.SubmitAnswer(domain.ParticipantAnswer{
		QuizID: "quiz-1", ParticipantID: "p1", QuestionID: "q1", Answer: "Paris",
	})
	if !errors.Is(err, domain.ErrStaleAnswer) {
		t.Fatalf("expected stale rejection, got %v", err)
	}

	_, _, err = s.SubmitAnswer(domain.ParticipantAnswer{
		QuizID: "quiz-1", ParticipantID: "p1", QuestionID: "nope", Answer: "Paris",
	})
	if !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected unknown question, got %v", err)
	}
}

func TestDisconnectKeepsStanding(t *testing.T) {
	s := app.NewSession("quiz-1", "host-1", twoQuestions())
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, _, _, err := s.Join("p1", "Alice"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, _, err := s.SubmitAnswer(domain.ParticipantAnswer{
		QuizID: "quiz-1", ParticipantID: "p1", QuestionID: "q1", Answer: "Paris",
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	s.MarkDisconnected("p1")

	p, _, _, err := s.Join("p1", "Alice")
	if err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	if p.Score != 10 || len(p.Answers) != 1 {
		t.Fatalf("rejoin must resume standing, got %+v", p)
	}
}

func TestLeaderboardOrdering(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := app.NewSessionWithClock("quiz-1", "host-1", twoQuestions(), func() time.Time { return now })
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	for _, p := range []struct{ id, name string }{{"p1", "Alice"}, {"p2", "Bob"}} {
		if _, _, _, err := s.Join(p.id, p.name); err != nil {
			t.Fatalf("join %s: %v", p.id, err)
		}
	}
	if _, _, err := s.SubmitAnswer(domain.ParticipantAnswer{
		QuizID: "quiz-1", ParticipantID: "p2", QuestionID: "q1", Answer: "Paris",
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	lb, err := s.End()
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if len(lb.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(lb.Entries))
	}
	if lb.Entries[0].ParticipantID != "p2" || lb.Entries[0].Score != 10 {
		t.Fatalf("expected Bob leading with 10, got %+v", lb.Entries[0])
	}
	if !lb.UpdatedAt.Equal(now) {
		t.Fatalf("expected clock timestamp, got %v", lb.UpdatedAt)
	}
}

func TestRecordSnapshot(t *testing.T) {
	s := app.NewSession("quiz-1", "host-1", twoQuestions())
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, _, _, err := s.Join("p1", "Alice"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := s.End(); err != nil {
		t.Fatalf("end: %v", err)
	}

	rec := s.Record()
	if rec.ID != "quiz-1" || rec.HostID != "host-1" {
		t.Fatalf("unexpected record identity: %+v", rec)
	}
	if rec.Phase != domain.PhaseEnded || rec.StartedAt == nil || rec.EndedAt == nil {
		t.Fatalf("expected ended record with timestamps, got %+v", rec)
	}
	if len(rec.QuestionIDs) != 2 || rec.QuestionIDs[0] != "q1" {
		t.Fatalf("unexpected question ids: %v", rec.QuestionIDs)
	}
	if len(rec.Participants) != 1 || rec.Participants[0].ID != "p1" {
		t.Fatalf("unexpected participants: %+v", rec.Participants)
	}
}
