package http_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"livequiz-service/internal/app"
	"livequiz-service/internal/domain"
)

func dialWS(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	u := "ws" + server.URL[len("http"):] + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendEvent(t *testing.T, conn *websocket.Conn, eventType string, payload any) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"type": eventType, "payload": payload}); err != nil {
		t.Fatalf("write %s: %v", eventType, err)
	}
}

func readNext(t *testing.T, conn *websocket.Conn, expect string) map[string]any {
	t.Helper()
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read (want %s): %v", expect, err)
	}
	if msg.Type != expect {
		t.Fatalf("expected %s, got %s (%v)", expect, msg.Type, msg.Payload)
	}
	return msg.Payload
}

func waitForPhase(t *testing.T, sessions *app.SessionRegistry, quizID string, phase domain.Phase) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if s, ok := sessions.Get(quizID); ok && s.Phase() == phase {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("session %s never reached phase %s", quizID, phase)
}

func TestWebSocketQuizFlow(t *testing.T) {
	s := newTestServer(t)
	s.sessions.Put(app.NewSession("quiz-1", "host-1", []domain.Question{{
		ID:            "q1",
		Category:      "Geography",
		Prompt:        "What is the capital of France?",
		Options:       []string{"Paris", "Lyon", "Nice", "Lille"},
		CorrectAnswer: "Paris",
	}}))

	server := httptest.NewServer(s.router)
	defer server.Close()

	host := dialWS(t, server)
	sendEvent(t, host, domain.TypeHostJoin, map[string]any{"hostId": "host-1"})
	sendEvent(t, host, domain.TypeHostStartQuiz, map[string]any{"quizId": "quiz-1"})
	waitForPhase(t, s.sessions, "quiz-1", domain.PhaseActive)

	participant := dialWS(t, server)
	sendEvent(t, participant, domain.TypeParticipantJoin, map[string]any{
		"quizId": "quiz-1", "participantId": "p1", "name": "Alice",
	})

	readNext(t, participant, domain.TypeQuizStarted)
	question := readNext(t, participant, domain.TypeQuizNextQuestion)
	if question["questionIndex"].(float64) != 0 {
		t.Fatalf("expected question index 0, got %v", question["questionIndex"])
	}

	joined := readNext(t, host, domain.TypeParticipantJoined)
	if joined["participantId"] != "p1" {
		t.Fatalf("unexpected join payload: %v", joined)
	}

	sendEvent(t, participant, domain.TypeParticipantAnswer, map[string]any{
		"quizId": "quiz-1", "participantId": "p1",
		"questionId": "q1", "answer": "Paris", "timeToAnswerMs": 650,
	})
	received := readNext(t, host, domain.TypeAnswerReceived)
	if received["isCorrect"] != true || received["score"].(float64) != 10 {
		t.Fatalf("unexpected answer payload: %v", received)
	}

	sendEvent(t, host, domain.TypeHostEndQuiz, map[string]any{"quizId": "quiz-1"})
	ended := readNext(t, participant, domain.TypeQuizEnded)
	lb, ok := ended["leaderboard"].(map[string]any)
	if !ok {
		t.Fatalf("quiz:ended missing leaderboard: %v", ended)
	}
	entries := lb["entries"].([]any)
	if len(entries) != 1 {
		t.Fatalf("expected one leaderboard entry, got %v", entries)
	}
	readNext(t, host, domain.TypeQuizEnded)
}

func TestWebSocketDiscoveryNotFound(t *testing.T) {
	s := newTestServer(t)
	server := httptest.NewServer(s.router)
	defer server.Close()

	conn := dialWS(t, server)
	sendEvent(t, conn, domain.TypeCheckActiveQuiz, map[string]any{
		"participantId": "p1", "name": "Bea",
	})
	readNext(t, conn, domain.TypeQuizNotFound)
}

func TestBroadcastDuringDisconnect(t *testing.T) {
	s := newTestServer(t)
	s.sessions.Put(app.NewSession("quiz-1", "host-1", []domain.Question{{
		ID:            "q1",
		Category:      "Sport",
		Prompt:        "How many holes in a round of golf?",
		Options:       []string{"9", "16", "18", "21"},
		CorrectAnswer: "18",
	}}))
	server := httptest.NewServer(s.router)
	defer server.Close()

	// Fill the lobby with waiters, then slam their connections shut while
	// a start broadcast is fanning out to that same room.
	var conns []*websocket.Conn
	for i := 0; i < 16; i++ {
		c := dialWS(t, server)
		sendEvent(t, c, domain.TypeCheckActiveQuiz, map[string]any{
			"participantId": fmt.Sprintf("p%d", i), "name": "waiter",
		})
		readNext(t, c, domain.TypeQuizNotFound)
		conns = append(conns, c)
	}

	closed := make(chan struct{})
	go func() {
		for _, c := range conns {
			c.Close()
		}
		close(closed)
	}()
	rec := s.do(t, http.MethodPost, "/api/quiz-sessions/quiz-1/action", map[string]any{"action": "start"})
	if rec.Code != http.StatusOK {
		t.Fatalf("start during churn: status %d body %s", rec.Code, rec.Body.String())
	}
	<-closed

	// The hub survives the churn and keeps serving new connections.
	late := dialWS(t, server)
	sendEvent(t, late, domain.TypeCheckActiveQuiz, map[string]any{
		"participantId": "p-late", "name": "Late",
	})
	readNext(t, late, domain.TypeQuizStarted)
	readNext(t, late, domain.TypeQuizNextQuestion)
}

func TestWebSocketSurvivesMalformedEvents(t *testing.T) {
	s := newTestServer(t)
	server := httptest.NewServer(s.router)
	defer server.Close()

	conn := dialWS(t, server)
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"host:reboot","payload":{}}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"participant:answer","payload":"nope"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}

	// The connection is still usable afterwards.
	sendEvent(t, conn, domain.TypeCheckActiveQuiz, map[string]any{
		"participantId": "p1", "name": "Bea",
	})
	readNext(t, conn, domain.TypeQuizNotFound)
}
