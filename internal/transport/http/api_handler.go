package http

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"

	"livequiz-service/internal/app"
	"livequiz-service/internal/domain"
	"livequiz-service/internal/questionbank"
)

// QuestionSource resolves question ids to content, usually through a
// cache in front of the bank.
type QuestionSource interface {
	GetQuestion(ctx context.Context, id string) (domain.Question, error)
}

// SessionReader reads archived session documents.
type SessionReader interface {
	GetSession(ctx context.Context, id string) (domain.SessionRecord, error)
	ListByHost(ctx context.Context, hostID string) ([]domain.SessionRecord, error)
}

// API is the REST collaborator surface around the core: question bank
// CRUD with file import/export, and session CRUD guarded by the host
// code. Session mutations route into the same dispatcher operations the
// websocket path uses.
type API struct {
	bank         questionbank.Bank
	questions    QuestionSource
	sessions     *app.SessionRegistry
	dispatcher   *app.Dispatcher
	archive      SessionReader
	archiver     app.SessionArchiver
	hostCode     string
	defaultCount int
	logger       *zap.Logger
}

func NewAPI(
	bank questionbank.Bank,
	questions QuestionSource,
	sessions *app.SessionRegistry,
	dispatcher *app.Dispatcher,
	archive SessionReader,
	archiver app.SessionArchiver,
	hostCode string,
	defaultCount int,
	logger *zap.Logger,
) *API {
	return &API{
		bank:         bank,
		questions:    questions,
		sessions:     sessions,
		dispatcher:   dispatcher,
		archive:      archive,
		archiver:     archiver,
		hostCode:     hostCode,
		defaultCount: defaultCount,
		logger:       logger,
	}
}

// Router wires all routes, the websocket endpoint included.
func (a *API) Router(ws *WSHandler) *httprouter.Router {
	router := httprouter.New()
	router.HandlerFunc(http.MethodGet, "/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	router.HandlerFunc(http.MethodGet, "/ws", ws.ServeWS)

	router.POST("/api/questions", a.handleCreateQuestions)
	router.GET("/api/questions", a.handleListQuestions)
	router.DELETE("/api/questions/:id", a.handleDeleteQuestion)
	router.POST("/api/questions/import", a.handleImportQuestions)
	router.GET("/api/questions/export", a.handleExportQuestions)

	router.POST("/api/quiz-sessions", a.handleCreateSession)
	router.GET("/api/quiz-sessions", a.handleListSessions)
	router.GET("/api/quiz-sessions/:id", a.handleGetSession)
	router.POST("/api/quiz-sessions/:id/action", a.handleSessionAction)
	return router
}

type apiResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

func (a *API) writeJSON(w http.ResponseWriter, status int, body apiResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		a.logger.Warn("write response failed", zap.Error(err))
	}
}

func (a *API) writeError(w http.ResponseWriter, status int, msg string) {
	a.writeJSON(w, status, apiResponse{Success: false, Message: msg})
}

func (a *API) handleCreateQuestions(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		a.writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var qs []domain.Question
		if err := json.Unmarshal(trimmed, &qs); err != nil {
			a.writeError(w, http.StatusBadRequest, "invalid question array")
			return
		}
		valid := qs[:0]
		for _, q := range qs {
			if q.Validate() == nil {
				valid = append(valid, q)
			}
		}
		if len(valid) == 0 {
			a.writeError(w, http.StatusBadRequest, "no valid questions found in import")
			return
		}
		created, err := a.bank.CreateBatch(r.Context(), valid)
		if err != nil {
			a.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		a.writeJSON(w, http.StatusOK, apiResponse{
			Success: true,
			Message: fmt.Sprintf("Imported %d questions", len(created)),
			Data:    created,
		})
		return
	}

	var q domain.Question
	if err := json.Unmarshal(trimmed, &q); err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid question")
		return
	}
	created, err := a.bank.Create(r.Context(), q)
	if errors.Is(err, domain.ErrInvalidQuestion) {
		a.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		a.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	a.writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: created})
}

func (a *API) handleListQuestions(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	questions, err := a.bank.List(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		a.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	a.writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: questions})
}

func (a *API) handleDeleteQuestion(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	err := a.bank.Delete(r.Context(), ps.ByName("id"))
	if errors.Is(err, domain.ErrQuestionNotFound) {
		a.writeError(w, http.StatusNotFound, "question not found")
		return
	}
	if err != nil {
		a.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	a.writeJSON(w, http.StatusOK, apiResponse{Success: true})
}

func (a *API) handleImportQuestions(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var (
		questions []domain.Question
		err       error
	)
	if strings.Contains(r.Header.Get("Content-Type"), "csv") {
		questions, err = questionbank.ParseCSV(r.Body)
	} else {
		questions, err = questionbank.ParseJSON(r.Body)
	}
	if err != nil {
		a.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(questions) == 0 {
		a.writeError(w, http.StatusBadRequest, "no valid questions found in import")
		return
	}
	created, err := a.bank.CreateBatch(r.Context(), questions)
	if err != nil {
		a.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	a.writeJSON(w, http.StatusOK, apiResponse{
		Success: true,
		Message: fmt.Sprintf("Imported %d questions", len(created)),
		Data:    created,
	})
}

func (a *API) handleExportQuestions(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	questions, err := a.bank.List(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		a.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if r.URL.Query().Get("format") == "csv" {
		data, err := questionbank.ExportCSV(questions)
		if err != nil {
			a.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="questions.csv"`)
		w.Write(data)
		return
	}
	data, err := questionbank.ExportJSON(questions)
	if err != nil {
		a.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

type createSessionRequest struct {
	HostID      string   `json:"hostId"`
	HostCode    string   `json:"hostCode"`
	Category    string   `json:"category"`
	Count       int      `json:"count"`
	QuestionIDs []string `json:"questionIds"`
}

func (a *API) handleCreateSession(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.HostID == "" {
		a.writeError(w, http.StatusBadRequest, "hostId is required")
		return
	}
	if subtle.ConstantTimeCompare([]byte(req.HostCode), []byte(a.hostCode)) != 1 {
		a.writeError(w, http.StatusUnauthorized, domain.ErrInvalidHostCode.Error())
		return
	}

	questions, err := a.resolveQuestions(r.Context(), req)
	if err != nil {
		if errors.Is(err, domain.ErrQuestionNotFound) {
			a.writeError(w, http.StatusNotFound, err.Error())
			return
		}
		a.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(questions) == 0 {
		// A session with zero questions could never start; reject now.
		a.writeError(w, http.StatusBadRequest, domain.ErrEmptyQuiz.Error())
		return
	}

	session := app.NewSession(uuid.NewString(), req.HostID, questions)
	a.sessions.Put(session)
	a.dispatcher.BindHost(session.ID(), req.HostID)

	record := session.Record()
	if a.archiver != nil {
		if err := a.archiver.ArchiveSession(r.Context(), record); err != nil {
			a.logger.Warn("session record write failed",
				zap.String("quiz_id", record.ID), zap.Error(err))
		}
	}
	a.writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: record})
}

func (a *API) resolveQuestions(ctx context.Context, req createSessionRequest) ([]domain.Question, error) {
	if len(req.QuestionIDs) > 0 {
		out := make([]domain.Question, 0, len(req.QuestionIDs))
		for _, id := range req.QuestionIDs {
			q, err := a.questions.GetQuestion(ctx, id)
			if err != nil {
				return nil, err
			}
			out = append(out, q)
		}
		return out, nil
	}

	all, err := a.bank.List(ctx, req.Category)
	if err != nil {
		return nil, err
	}
	count := req.Count
	if count <= 0 {
		count = a.defaultCount
	}
	// Package-level shuffle: it is mutex-guarded, so concurrent session
	// creations do not race on generator state.
	rand.Shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })
	if count < len(all) {
		all = all[:count]
	}
	return all, nil
}

func (a *API) handleGetSession(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	// The in-memory session is authoritative while the quiz is live.
	if session, ok := a.sessions.Get(id); ok {
		a.writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: session.Record()})
		return
	}
	if a.archive != nil {
		rec, err := a.archive.GetSession(r.Context(), id)
		if err == nil {
			a.writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: rec})
			return
		}
		if !errors.Is(err, domain.ErrSessionNotFound) {
			a.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	a.writeError(w, http.StatusNotFound, domain.ErrSessionNotFound.Error())
}

func (a *API) handleListSessions(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	hostID := r.URL.Query().Get("hostId")
	if hostID == "" {
		a.writeError(w, http.StatusBadRequest, "hostId is required")
		return
	}

	live := a.sessions.ByHost(hostID)
	records := make([]domain.SessionRecord, 0, len(live))
	seen := make(map[string]struct{}, len(live))
	for _, s := range live {
		rec := s.Record()
		records = append(records, rec)
		seen[rec.ID] = struct{}{}
	}
	if a.archive != nil {
		archived, err := a.archive.ListByHost(r.Context(), hostID)
		if err != nil {
			a.logger.Warn("archived session list failed", zap.Error(err))
		}
		for _, rec := range archived {
			if _, ok := seen[rec.ID]; !ok {
				records = append(records, rec)
			}
		}
	}
	a.writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: records})
}

type sessionActionRequest struct {
	Action         string `json:"action"`
	ParticipantID  string `json:"participantId"`
	Name           string `json:"name"`
	QuestionID     string `json:"questionId"`
	Answer         string `json:"answer"`
	TimeToAnswerMs int    `json:"timeToAnswerMs"`
	QuestionIndex  *int   `json:"questionIndex"`
}

func (a *API) handleSessionAction(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	quizID := ps.ByName("id")
	var req sessionActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	switch req.Action {
	case "start":
		if err := a.dispatcher.StartQuiz(quizID); err != nil {
			a.writeActionError(w, err)
			return
		}
		a.writeJSON(w, http.StatusOK, apiResponse{Success: true})
	case "join":
		participant, question, index, err := a.dispatcher.JoinQuiz(quizID, req.ParticipantID, req.Name)
		if err != nil {
			a.writeActionError(w, err)
			return
		}
		a.writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: map[string]any{
			"participant":   participant,
			"question":      question,
			"questionIndex": index,
		}})
	case "submit-answer":
		rec, total, err := a.dispatcher.SubmitAnswer(domain.ParticipantAnswer{
			QuizID:         quizID,
			ParticipantID:  req.ParticipantID,
			QuestionID:     req.QuestionID,
			Answer:         req.Answer,
			TimeToAnswerMs: req.TimeToAnswerMs,
		})
		if errors.Is(err, domain.ErrDuplicateAnswer) {
			a.writeJSON(w, http.StatusOK, apiResponse{Success: true, Message: "already answered"})
			return
		}
		if err != nil {
			a.writeActionError(w, err)
			return
		}
		a.writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: map[string]any{
			"answer": rec,
			"score":  total,
		}})
	case "next-question":
		question, index, err := a.dispatcher.AdvanceQuestion(quizID, req.QuestionIndex)
		if err != nil {
			a.writeActionError(w, err)
			return
		}
		a.writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: map[string]any{
			"question":      question,
			"questionIndex": index,
		}})
	case "end":
		lb, err := a.dispatcher.EndQuiz(r.Context(), quizID)
		if err != nil {
			a.writeActionError(w, err)
			return
		}
		a.writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: lb})
	default:
		a.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown action %q", req.Action))
	}
}

func (a *API) writeActionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrParticipantNotFound),
		errors.Is(err, domain.ErrQuestionNotFound):
		a.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrEmptyQuiz),
		errors.Is(err, domain.ErrStaleAnswer):
		a.writeError(w, http.StatusConflict, err.Error())
	default:
		a.writeError(w, http.StatusInternalServerError, err.Error())
	}
}
