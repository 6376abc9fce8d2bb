package domain

import "time"

// Phase is the coarse lifecycle stage of a quiz session.
type Phase string

const (
	PhasePending Phase = "pending"
	PhaseActive  Phase = "active"
	PhaseEnded   Phase = "ended"
)

// Role identifies what a connection is attached as.
type Role string

const (
	RoleHost        Role = "host"
	RoleParticipant Role = "participant"
)

// Categories is the fixed set of question categories accepted by the bank.
var Categories = []string{"80s Music", "90s Music", "Geography", "Sport", "TV & Film"}

// ValidCategory reports whether c is one of the fixed categories.
func ValidCategory(c string) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Question is an MCQ with exactly four options and one correct answer.
type Question struct {
	ID            string   `json:"id"`
	Category      string   `json:"category"`
	Prompt        string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
}

// Validate checks the bank's invariants: known category, non-empty prompt,
// exactly four options, correct answer among them.
func (q Question) Validate() error {
	if !ValidCategory(q.Category) {
		return ErrInvalidQuestion
	}
	if q.Prompt == "" || len(q.Options) != 4 {
		return ErrInvalidQuestion
	}
	for _, opt := range q.Options {
		if opt == q.CorrectAnswer {
			return nil
		}
	}
	return ErrInvalidQuestion
}

// AnswerRecord is one scored submission by a participant.
type AnswerRecord struct {
	QuestionID     string `json:"questionId"`
	Answer         string `json:"answer"`
	IsCorrect      bool   `json:"isCorrect"`
	TimeToAnswerMs int    `json:"timeToAnswerMs"`
}

// Participant is a member of one quiz session. Disconnecting clears
// Connected but never Score or Answers; a rejoin under the same id
// resumes standing.
type Participant struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Score     int            `json:"score"`
	Answers   []AnswerRecord `json:"answers"`
	Connected bool           `json:"connected"`
}

// LeaderboardEntry is a snapshot-friendly view of a participant.
type LeaderboardEntry struct {
	ParticipantID string `json:"participantId"`
	Name          string `json:"name"`
	Score         int    `json:"score"`
}

// Leaderboard captures the ordered scoreboard for a quiz session.
type Leaderboard struct {
	QuizID    string             `json:"quizId"`
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// SessionRecord is the durable session document written when a quiz ends
// (and, best-effort, when it is created). The in-memory session stays
// authoritative for the live flow.
type SessionRecord struct {
	ID                   string        `json:"id"`
	HostID               string        `json:"hostId"`
	Phase                Phase         `json:"phase"`
	CurrentQuestionIndex int           `json:"currentQuestionIndex"`
	QuestionIDs          []string      `json:"questionIds"`
	Participants         []Participant `json:"participants"`
	StartedAt            *time.Time    `json:"startedAt,omitempty"`
	EndedAt              *time.Time    `json:"endedAt,omitempty"`
}
