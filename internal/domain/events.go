package domain

import (
	"encoding/json"
	"fmt"
)

// Envelope is the wire framing for both directions: a type tag plus a
// type-specific payload.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Inbound event type tags.
const (
	TypeHostJoin          = "host:join"
	TypeHostStartQuiz     = "host:start-quiz"
	TypeHostNextQuestion  = "host:next-question"
	TypeHostEndQuiz       = "host:end-quiz"
	TypeCheckActiveQuiz   = "participant:check-active-quiz"
	TypeParticipantJoin   = "participant:join"
	TypeParticipantAnswer = "participant:answer"
)

// Outbound event type tags.
const (
	TypeQuizStarted       = "quiz:started"
	TypeQuizNextQuestion  = "quiz:next-question"
	TypeQuizEnded         = "quiz:ended"
	TypeQuizNotFound      = "quiz:not-found"
	TypeParticipantJoined = "participant:joined"
	TypeAnswerReceived    = "answer:received"
	TypeError             = "error"
)

// InboundEvent is the closed set of client events the dispatcher accepts.
type InboundEvent interface {
	inboundEvent()
}

type HostJoin struct {
	HostID string `json:"hostId"`
}

type HostStartQuiz struct {
	QuizID string `json:"quizId"`
}

// HostNextQuestion advances the session. QuestionIndex, when non-nil, must
// equal the index being advanced to; the session's question list stays
// authoritative either way.
type HostNextQuestion struct {
	QuizID        string `json:"quizId"`
	QuestionIndex *int   `json:"questionIndex,omitempty"`
}

type HostEndQuiz struct {
	QuizID string `json:"quizId"`
}

type CheckActiveQuiz struct {
	ParticipantID string `json:"participantId"`
	Name          string `json:"name"`
}

type ParticipantJoin struct {
	QuizID        string `json:"quizId"`
	ParticipantID string `json:"participantId"`
	Name          string `json:"name"`
}

type ParticipantAnswer struct {
	QuizID         string `json:"quizId"`
	ParticipantID  string `json:"participantId"`
	QuestionID     string `json:"questionId"`
	Answer         string `json:"answer"`
	TimeToAnswerMs int    `json:"timeToAnswerMs"`
}

func (HostJoin) inboundEvent()          {}
func (HostStartQuiz) inboundEvent()     {}
func (HostNextQuestion) inboundEvent()  {}
func (HostEndQuiz) inboundEvent()       {}
func (CheckActiveQuiz) inboundEvent()   {}
func (ParticipantJoin) inboundEvent()   {}
func (ParticipantAnswer) inboundEvent() {}

// DecodeInbound turns a wire envelope into a typed event. An unknown type
// or an undecodable payload yields an error; callers drop and log.
func DecodeInbound(env Envelope) (InboundEvent, error) {
	decode := func(v any) error {
		if len(env.Payload) == 0 {
			return fmt.Errorf("event %s: missing payload", env.Type)
		}
		if err := json.Unmarshal(env.Payload, v); err != nil {
			return fmt.Errorf("event %s: %w", env.Type, err)
		}
		return nil
	}

	switch env.Type {
	case TypeHostJoin:
		var ev HostJoin
		if err := decode(&ev); err != nil {
			return nil, err
		}
		return ev, nil
	case TypeHostStartQuiz:
		var ev HostStartQuiz
		if err := decode(&ev); err != nil {
			return nil, err
		}
		return ev, nil
	case TypeHostNextQuestion:
		var ev HostNextQuestion
		if err := decode(&ev); err != nil {
			return nil, err
		}
		return ev, nil
	case TypeHostEndQuiz:
		var ev HostEndQuiz
		if err := decode(&ev); err != nil {
			return nil, err
		}
		return ev, nil
	case TypeCheckActiveQuiz:
		var ev CheckActiveQuiz
		if err := decode(&ev); err != nil {
			return nil, err
		}
		return ev, nil
	case TypeParticipantJoin:
		var ev ParticipantJoin
		if err := decode(&ev); err != nil {
			return nil, err
		}
		return ev, nil
	case TypeParticipantAnswer:
		var ev ParticipantAnswer
		if err := decode(&ev); err != nil {
			return nil, err
		}
		return ev, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", env.Type)
	}
}

// OutboundEvent is a server-to-client message before wire encoding.
type OutboundEvent struct {
	Type    string
	Payload any
}

// Outbound payloads.

type QuizStartedPayload struct {
	QuizID string `json:"quizId"`
}

type NextQuestionPayload struct {
	QuizID        string   `json:"quizId"`
	QuestionIndex int      `json:"questionIndex"`
	Question      Question `json:"question"`
}

type QuizEndedPayload struct {
	QuizID      string      `json:"quizId"`
	Leaderboard Leaderboard `json:"leaderboard"`
}

type ParticipantJoinedPayload struct {
	ParticipantID string `json:"participantId"`
	Name          string `json:"name"`
	ID            string `json:"id"`
	Score         int    `json:"score"`
}

type AnswerReceivedPayload struct {
	ParticipantID  string `json:"participantId"`
	QuestionID     string `json:"questionId"`
	Answer         string `json:"answer"`
	TimeToAnswerMs int    `json:"timeToAnswerMs"`
	IsCorrect      bool   `json:"isCorrect"`
	Score          int    `json:"score"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

func QuizStarted(quizID string) OutboundEvent {
	return OutboundEvent{Type: TypeQuizStarted, Payload: QuizStartedPayload{QuizID: quizID}}
}

func QuizNextQuestion(quizID string, index int, q Question) OutboundEvent {
	return OutboundEvent{Type: TypeQuizNextQuestion, Payload: NextQuestionPayload{QuizID: quizID, QuestionIndex: index, Question: q}}
}

func QuizEnded(quizID string, lb Leaderboard) OutboundEvent {
	return OutboundEvent{Type: TypeQuizEnded, Payload: QuizEndedPayload{QuizID: quizID, Leaderboard: lb}}
}

func QuizNotFound() OutboundEvent {
	return OutboundEvent{Type: TypeQuizNotFound}
}

func ParticipantJoined(p Participant) OutboundEvent {
	return OutboundEvent{Type: TypeParticipantJoined, Payload: ParticipantJoinedPayload{
		ParticipantID: p.ID,
		Name:          p.Name,
		ID:            p.ID,
		Score:         p.Score,
	}}
}

func AnswerReceived(ans ParticipantAnswer, isCorrect bool, score int) OutboundEvent {
	return OutboundEvent{Type: TypeAnswerReceived, Payload: AnswerReceivedPayload{
		ParticipantID:  ans.ParticipantID,
		QuestionID:     ans.QuestionID,
		Answer:         ans.Answer,
		TimeToAnswerMs: ans.TimeToAnswerMs,
		IsCorrect:      isCorrect,
		Score:          score,
	}}
}

func ErrorEvent(msg string) OutboundEvent {
	return OutboundEvent{Type: TypeError, Payload: ErrorPayload{Message: msg}}
}
