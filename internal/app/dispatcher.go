package app

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"livequiz-service/internal/domain"
)

// SessionArchiver persists the final session document when a quiz ends.
// Archival is best-effort: the live in-memory flow never waits on it
// holding a lock and never fails because of it.
type SessionArchiver interface {
	ArchiveSession(ctx context.Context, rec domain.SessionRecord) error
}

// Dispatcher is the single entry point for inbound client events. It
// looks up the connection, validates the event against the session state
// machine, applies the mutation, and fans the resulting events out
// through the room router.
type Dispatcher struct {
	registry *Registry
	rooms    *Rooms
	sessions *SessionRegistry
	archiver SessionArchiver
	logger   *zap.Logger
}

func NewDispatcher(registry *Registry, rooms *Rooms, sessions *SessionRegistry, archiver SessionArchiver, logger *zap.Logger) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		rooms:    rooms,
		sessions: sessions,
		archiver: archiver,
		logger:   logger,
	}
	registry.OnDetach(d.handleDetach)
	return d
}

// HandleEvent processes one inbound event for a connection. Nothing here
// is fatal: invalid events are reported to the originator and logged.
func (d *Dispatcher) HandleEvent(ctx context.Context, connID string, ev domain.InboundEvent) {
	switch ev := ev.(type) {
	case domain.HostJoin:
		d.handleHostJoin(connID, ev)
	case domain.HostStartQuiz:
		d.handleStartQuiz(connID, ev)
	case domain.HostNextQuestion:
		d.handleNextQuestion(connID, ev)
	case domain.HostEndQuiz:
		d.handleEndQuiz(ctx, connID, ev)
	case domain.CheckActiveQuiz:
		d.handleCheckActive(connID, ev)
	case domain.ParticipantJoin:
		d.handleParticipantJoin(connID, ev)
	case domain.ParticipantAnswer:
		d.handleAnswer(connID, ev)
	default:
		d.logger.Warn("unhandled event", zap.String("conn_id", connID))
	}
}

func (d *Dispatcher) handleHostJoin(connID string, ev domain.HostJoin) {
	if ev.HostID == "" {
		d.dropMalformed(connID, domain.TypeHostJoin)
		return
	}
	d.registry.Attach(connID, domain.RoleHost, "", ev.HostID)
	for _, s := range d.sessions.ByHost(ev.HostID) {
		d.rooms.Join(connID, HostRoom(s.ID()))
	}
	d.logger.Info("host joined", zap.String("host_id", ev.HostID))
}

func (d *Dispatcher) handleStartQuiz(connID string, ev domain.HostStartQuiz) {
	if ev.QuizID == "" {
		d.dropMalformed(connID, domain.TypeHostStartQuiz)
		return
	}
	if _, ok := d.sessions.Get(ev.QuizID); !ok {
		d.rooms.SendTo(connID, domain.QuizNotFound())
		return
	}
	if conn, ok := d.registry.Lookup(connID); ok {
		d.registry.Attach(connID, domain.RoleHost, ev.QuizID, conn.ParticipantID)
		d.rooms.Join(connID, HostRoom(ev.QuizID))
	}

	if err := d.StartQuiz(ev.QuizID); err != nil {
		d.reportError(connID, ev.QuizID, "start", err)
	}
}

// BindHost joins every connection attached as this host to the session's
// host room. Covers sessions created over REST after the host already
// sent host:join: without it the host would miss participant:joined and
// answer:received until it re-sent host:start-quiz on its own socket.
func (d *Dispatcher) BindHost(quizID, hostID string) {
	for _, connID := range d.registry.HostConnections(hostID) {
		d.rooms.Join(connID, HostRoom(quizID))
	}
}

// StartQuiz transitions a session to Active and announces it to the quiz
// room and to lobby connections waiting in discovery.
func (d *Dispatcher) StartQuiz(quizID string) error {
	session, ok := d.sessions.Get(quizID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	if err := session.Start(); err != nil {
		return err
	}
	started := domain.QuizStarted(quizID)
	d.rooms.Broadcast(QuizRoom(quizID), started)
	d.rooms.Broadcast(roomLobby, started)
	d.logger.Info("quiz started", zap.String("quiz_id", quizID))
	return nil
}

func (d *Dispatcher) handleNextQuestion(connID string, ev domain.HostNextQuestion) {
	if ev.QuizID == "" {
		d.dropMalformed(connID, domain.TypeHostNextQuestion)
		return
	}
	if _, _, err := d.AdvanceQuestion(ev.QuizID, ev.QuestionIndex); err != nil {
		d.reportError(connID, ev.QuizID, "next-question", err)
	}
}

// AdvanceQuestion moves a session to its next question and broadcasts it
// to the quiz room. The session's own question list is authoritative.
func (d *Dispatcher) AdvanceQuestion(quizID string, expectIndex *int) (domain.Question, int, error) {
	session, ok := d.sessions.Get(quizID)
	if !ok {
		return domain.Question{}, 0, domain.ErrSessionNotFound
	}
	question, index, err := session.Advance(expectIndex)
	if err != nil {
		return domain.Question{}, 0, err
	}
	d.rooms.Broadcast(QuizRoom(quizID), domain.QuizNextQuestion(quizID, index, question))
	d.logger.Info("next question", zap.String("quiz_id", quizID), zap.Int("index", index))
	return question, index, nil
}

func (d *Dispatcher) handleEndQuiz(ctx context.Context, connID string, ev domain.HostEndQuiz) {
	if ev.QuizID == "" {
		d.dropMalformed(connID, domain.TypeHostEndQuiz)
		return
	}
	if _, err := d.EndQuiz(ctx, ev.QuizID); err != nil {
		d.reportError(connID, ev.QuizID, "end", err)
	}
}

// EndQuiz terminates a session, broadcasts the final leaderboard, archives
// the session document best-effort, and drops the session from the active
// set. Archival failure never disturbs the live flow.
func (d *Dispatcher) EndQuiz(ctx context.Context, quizID string) (domain.Leaderboard, error) {
	session, ok := d.sessions.Get(quizID)
	if !ok {
		return domain.Leaderboard{}, domain.ErrSessionNotFound
	}
	lb, err := session.End()
	if err != nil {
		return domain.Leaderboard{}, err
	}
	d.rooms.Broadcast(QuizRoom(quizID), domain.QuizEnded(quizID, lb))
	d.rooms.Broadcast(HostRoom(quizID), domain.QuizEnded(quizID, lb))

	if d.archiver != nil {
		if err := d.archiver.ArchiveSession(ctx, session.Record()); err != nil {
			d.logger.Warn("session archive failed", zap.String("quiz_id", quizID), zap.Error(err))
		}
	}
	d.sessions.Delete(quizID)
	d.logger.Info("quiz ended", zap.String("quiz_id", quizID))
	return lb, nil
}

func (d *Dispatcher) handleCheckActive(connID string, ev domain.CheckActiveQuiz) {
	if ev.ParticipantID == "" {
		d.dropMalformed(connID, domain.TypeCheckActiveQuiz)
		return
	}
	session, ok := d.sessions.FirstActive()
	if !ok {
		// Stay in the lobby so a later quiz:started reaches this
		// connection and it can retry discovery.
		d.rooms.Join(connID, roomLobby)
		d.rooms.SendTo(connID, domain.QuizNotFound())
		return
	}
	d.joinSession(connID, session, ev.ParticipantID, ev.Name)
}

func (d *Dispatcher) handleParticipantJoin(connID string, ev domain.ParticipantJoin) {
	if ev.QuizID == "" || ev.ParticipantID == "" {
		d.dropMalformed(connID, domain.TypeParticipantJoin)
		return
	}
	session, ok := d.sessions.Get(ev.QuizID)
	if !ok {
		d.rooms.SendTo(connID, domain.QuizNotFound())
		return
	}
	d.joinSession(connID, session, ev.ParticipantID, ev.Name)
}

// JoinQuiz adds (or refreshes) a participant in an Active session and
// notifies the host room. It returns the current question so callers can
// complete the late-join delivery.
func (d *Dispatcher) JoinQuiz(quizID, participantID, name string) (domain.Participant, domain.Question, int, error) {
	session, ok := d.sessions.Get(quizID)
	if !ok {
		return domain.Participant{}, domain.Question{}, 0, domain.ErrSessionNotFound
	}
	participant, question, index, err := session.Join(participantID, name)
	if err != nil {
		return domain.Participant{}, domain.Question{}, 0, err
	}
	d.rooms.Broadcast(HostRoom(quizID), domain.ParticipantJoined(participant))
	return participant, question, index, nil
}

// SubmitAnswer scores a submission and, when accepted, notifies the host
// room. Participants never see each other's answers.
func (d *Dispatcher) SubmitAnswer(ev domain.ParticipantAnswer) (domain.AnswerRecord, int, error) {
	session, ok := d.sessions.Get(ev.QuizID)
	if !ok {
		return domain.AnswerRecord{}, 0, domain.ErrSessionNotFound
	}
	rec, total, err := session.SubmitAnswer(ev)
	if err != nil {
		return rec, total, err
	}
	d.rooms.Broadcast(HostRoom(ev.QuizID), domain.AnswerReceived(ev, rec.IsCorrect, total))
	return rec, total, nil
}

// joinSession implements the late-join convergence guarantee: the joiner
// is delivered quiz:started and the current question in the same handling
// that confirms the join, so it observes exactly what a connected
// participant would.
func (d *Dispatcher) joinSession(connID string, session *Session, participantID, name string) {
	quizID := session.ID()
	_, question, index, err := d.JoinQuiz(quizID, participantID, name)
	if err != nil {
		// Pending or Ended sessions are not joinable; to the
		// participant that is indistinguishable from no active quiz.
		d.rooms.SendTo(connID, domain.QuizNotFound())
		return
	}

	d.registry.Attach(connID, domain.RoleParticipant, quizID, participantID)
	d.rooms.Leave(connID, roomLobby)
	d.rooms.Join(connID, QuizRoom(quizID))

	d.rooms.SendTo(connID, domain.QuizStarted(quizID))
	d.rooms.SendTo(connID, domain.QuizNextQuestion(quizID, index, question))
	d.logger.Info("participant joined",
		zap.String("quiz_id", quizID),
		zap.String("participant_id", participantID))
}

func (d *Dispatcher) handleAnswer(connID string, ev domain.ParticipantAnswer) {
	if ev.QuizID == "" || ev.ParticipantID == "" || ev.QuestionID == "" {
		d.dropMalformed(connID, domain.TypeParticipantAnswer)
		return
	}
	_, _, err := d.SubmitAnswer(ev)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrSessionNotFound):
		d.rooms.SendTo(connID, domain.QuizNotFound())
	case errors.Is(err, domain.ErrDuplicateAnswer):
		// First submission wins; repeats are ignored without signaling
		// a hard error back.
		d.logger.Debug("duplicate answer ignored",
			zap.String("quiz_id", ev.QuizID),
			zap.String("participant_id", ev.ParticipantID),
			zap.String("question_id", ev.QuestionID))
	case errors.Is(err, domain.ErrQuestionNotFound):
		d.rooms.SendTo(connID, domain.QuizNotFound())
	default:
		d.reportError(connID, ev.QuizID, "answer", err)
	}
}

// handleDetach is the registry's unregister callback: the participant
// leaves its rooms and the connected set, but score and answer history
// stay with the session for a possible rejoin.
func (d *Dispatcher) handleDetach(conn Connection) {
	d.rooms.LeaveAll(conn.ID)
	if conn.Role == domain.RoleParticipant && conn.QuizID != "" && conn.ParticipantID != "" {
		if session, ok := d.sessions.Get(conn.QuizID); ok {
			session.MarkDisconnected(conn.ParticipantID)
		}
	}
	d.logger.Debug("connection detached", zap.String("conn_id", conn.ID))
}

func (d *Dispatcher) dropMalformed(connID, eventType string) {
	d.logger.Warn("malformed event dropped",
		zap.String("conn_id", connID),
		zap.String("event", eventType))
}

func (d *Dispatcher) reportError(connID, quizID, op string, err error) {
	d.logger.Warn("event rejected",
		zap.String("quiz_id", quizID),
		zap.String("op", op),
		zap.Error(err))
	d.rooms.SendTo(connID, domain.ErrorEvent(err.Error()))
}
