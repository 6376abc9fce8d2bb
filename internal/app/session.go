package app

import (
	"sort"
	"sync"
	"time"

	"livequiz-service/internal/domain"
)

// Session is the in-memory authoritative record of one active quiz: its
// phase, question cursor, and participant roster. All mutating methods
// serialize under the session mutex; no lock is ever held across two
// sessions.
type Session struct {
	id     string
	hostID string
	now    func() time.Time

	mu           sync.RWMutex
	phase        domain.Phase
	questions    []domain.Question
	current      int
	participants map[string]*domain.Participant
	joinOrder    []string
	startedAt    *time.Time
	endedAt      *time.Time
}

// NewSession creates a Pending session over a fixed question list.
func NewSession(id, hostID string, questions []domain.Question) *Session {
	return NewSessionWithClock(id, hostID, questions, time.Now)
}

// NewSessionWithClock allows deterministic timestamps in tests.
func NewSessionWithClock(id, hostID string, questions []domain.Question, now func() time.Time) *Session {
	return &Session{
		id:           id,
		hostID:       hostID,
		now:          now,
		phase:        domain.PhasePending,
		questions:    questions,
		participants: make(map[string]*domain.Participant),
	}
}

func (s *Session) ID() string     { return s.id }
func (s *Session) HostID() string { return s.hostID }

func (s *Session) Phase() domain.Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// Start transitions Pending -> Active. A session with zero questions can
// never become Active.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != domain.PhasePending {
		return domain.ErrInvalidTransition
	}
	if len(s.questions) == 0 {
		return domain.ErrEmptyQuiz
	}
	s.phase = domain.PhaseActive
	s.current = 0
	t := s.now()
	s.startedAt = &t
	return nil
}

// Advance moves to the next question and returns it with its index.
// expectIndex, when non-nil, must equal the index being advanced to.
func (s *Session) Advance(expectIndex *int) (domain.Question, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != domain.PhaseActive {
		return domain.Question{}, 0, domain.ErrInvalidTransition
	}
	next := s.current + 1
	if next >= len(s.questions) {
		return domain.Question{}, 0, domain.ErrInvalidTransition
	}
	if expectIndex != nil && *expectIndex != next {
		return domain.Question{}, 0, domain.ErrInvalidTransition
	}
	s.current = next
	return s.questions[next], next, nil
}

// End transitions Pending|Active -> Ended and returns the final
// leaderboard. Nothing mutates an Ended session.
func (s *Session) End() (domain.Leaderboard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == domain.PhaseEnded {
		return domain.Leaderboard{}, domain.ErrInvalidTransition
	}
	s.phase = domain.PhaseEnded
	t := s.now()
	s.endedAt = &t
	return s.leaderboardLocked(), nil
}

// Join adds a participant while the session is Active, or refreshes an
// existing one (rejoin keeps score and answer history). The returned
// question/index report the current question for late-join delivery.
func (s *Session) Join(participantID, name string) (domain.Participant, domain.Question, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != domain.PhaseActive {
		return domain.Participant{}, domain.Question{}, 0, domain.ErrInvalidTransition
	}
	p, ok := s.participants[participantID]
	if !ok {
		p = &domain.Participant{ID: participantID, Name: name}
		s.participants[participantID] = p
		s.joinOrder = append(s.joinOrder, participantID)
	} else if name != "" {
		p.Name = name
	}
	p.Connected = true
	return *p, s.questions[s.current], s.current, nil
}

// MarkDisconnected flags a participant as no longer connected. Score and
// answers stay in the roster so a rejoin resumes standing.
func (s *Session) MarkDisconnected(participantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.participants[participantID]; ok {
		p.Connected = false
	}
}

// SubmitAnswer scores a submission against the question it names.
// Accepted at most once per participant and question; a second submission
// returns ErrDuplicateAnswer with no effect. A submission naming a
// question other than the current one returns ErrStaleAnswer, so a late
// answer is never scored against the wrong question.
func (s *Session) SubmitAnswer(sub domain.ParticipantAnswer) (domain.AnswerRecord, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != domain.PhaseActive {
		return domain.AnswerRecord{}, 0, domain.ErrInvalidTransition
	}
	p, ok := s.participants[sub.ParticipantID]
	if !ok {
		return domain.AnswerRecord{}, 0, domain.ErrParticipantNotFound
	}

	question := s.questions[s.current]
	if sub.QuestionID != question.ID {
		if s.knownQuestionLocked(sub.QuestionID) {
			return domain.AnswerRecord{}, 0, domain.ErrStaleAnswer
		}
		return domain.AnswerRecord{}, 0, domain.ErrQuestionNotFound
	}
	for _, rec := range p.Answers {
		if rec.QuestionID == sub.QuestionID {
			return domain.AnswerRecord{}, p.Score, domain.ErrDuplicateAnswer
		}
	}

	result := Score(question, sub.Answer)
	rec := domain.AnswerRecord{
		QuestionID:     sub.QuestionID,
		Answer:         sub.Answer,
		IsCorrect:      result.IsCorrect,
		TimeToAnswerMs: sub.TimeToAnswerMs,
	}
	p.Answers = append(p.Answers, rec)
	p.Score += result.Delta
	return rec, p.Score, nil
}

func (s *Session) knownQuestionLocked(questionID string) bool {
	for i := range s.questions {
		if s.questions[i].ID == questionID {
			return true
		}
	}
	return false
}

// CurrentQuestion returns the active question, if any.
func (s *Session) CurrentQuestion() (domain.Question, int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.phase != domain.PhaseActive {
		return domain.Question{}, 0, false
	}
	return s.questions[s.current], s.current, true
}

// Leaderboard returns the ordered scoreboard snapshot.
func (s *Session) Leaderboard() domain.Leaderboard {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.leaderboardLocked()
}

func (s *Session) leaderboardLocked() domain.Leaderboard {
	entries := make([]domain.LeaderboardEntry, 0, len(s.participants))
	for _, id := range s.joinOrder {
		p := s.participants[id]
		entries = append(entries, domain.LeaderboardEntry{
			ParticipantID: p.ID,
			Name:          p.Name,
			Score:         p.Score,
		})
	}
	// Stable sort keeps join order among ties.
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})
	return domain.Leaderboard{
		QuizID:    s.id,
		Entries:   entries,
		UpdatedAt: s.now(),
	}
}

// Record snapshots the session into its durable document form.
func (s *Session) Record() domain.SessionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, len(s.questions))
	for i := range s.questions {
		ids[i] = s.questions[i].ID
	}
	participants := make([]domain.Participant, 0, len(s.participants))
	for _, id := range s.joinOrder {
		p := s.participants[id]
		cp := *p
		cp.Answers = append([]domain.AnswerRecord(nil), p.Answers...)
		participants = append(participants, cp)
	}
	return domain.SessionRecord{
		ID:                   s.id,
		HostID:               s.hostID,
		Phase:                s.phase,
		CurrentQuestionIndex: s.current,
		QuestionIDs:          ids,
		Participants:         participants,
		StartedAt:            s.startedAt,
		EndedAt:              s.endedAt,
	}
}
