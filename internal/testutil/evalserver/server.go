// Package evalserver is a scriptable stand-in for the remote session and
// evaluation service. Tests start it with httptest and point clients at URL.
package evalserver

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
)

// Reply scripts one answer of the fake service.
type Reply struct {
	// Status defaults to 200.
	Status int
	// Raw, when set, is written verbatim instead of a JSON body.
	Raw string
	// JSON is encoded as the body when Raw is empty.
	JSON any
	// Wait, when non-nil, blocks the handler until it is closed.
	Wait <-chan struct{}
}

// Server is the fake service.
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	nextID    int64
	repls     map[int64]bool
	replReply *Reply
	evalReply map[string]Reply
	texts     []string

	replCalls atomic.Int64
	evalCalls atomic.Int64
}

// New starts a server that creates repls with ids 1, 2, ... and evaluates
// text by echoing it back as the result.
func New(logger *slog.Logger) *Server {
	s := &Server{
		nextID:    1,
		repls:     make(map[int64]bool),
		evalReply: make(map[string]Reply),
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(logger))
	r.Use(Recovery(logger))

	r.Post("/repl", s.createRepl)
	r.Post("/eval/{id}", s.eval)

	s.Server = httptest.NewServer(r)
	return s
}

// SetReplReply overrides the answer to every POST /repl.
func (s *Server) SetReplReply(reply Reply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replReply = &reply
}

// SetEvalReply scripts the answer for a given input text.
func (s *Server) SetEvalReply(text string, reply Reply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evalReply[text] = reply
}

// AddRepl registers an id as known, as if an earlier run had created it.
func (s *Server) AddRepl(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.repls[id] = true
	if id >= s.nextID {
		s.nextID = id + 1
	}
}

// ReplCalls reports how many session-creation requests were received.
func (s *Server) ReplCalls() int { return int(s.replCalls.Load()) }

// EvalCalls reports how many evaluation requests were received.
func (s *Server) EvalCalls() int { return int(s.evalCalls.Load()) }

// Texts returns the evaluated inputs in arrival order.
func (s *Server) Texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.texts))
	copy(out, s.texts)
	return out
}

func (s *Server) createRepl(w http.ResponseWriter, r *http.Request) {
	s.replCalls.Add(1)

	s.mu.Lock()
	scripted := s.replReply
	id := s.nextID
	if scripted == nil {
		s.nextID++
		s.repls[id] = true
	}
	s.mu.Unlock()

	if scripted != nil {
		s.write(w, *scripted)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id})
}

func (s *Server) eval(w http.ResponseWriter, r *http.Request) {
	s.evalCalls.Add(1)

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid repl id", http.StatusBadRequest)
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	body, _ := io.ReadAll(r.Body)
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}

	s.mu.Lock()
	s.texts = append(s.texts, req.Text)
	known := s.repls[id]
	reply, scripted := s.evalReply[req.Text]
	s.mu.Unlock()

	if scripted {
		s.write(w, reply)
		return
	}
	if !known {
		writeJSON(w, http.StatusOK, map[string]string{
			"result": fmt.Sprintf("Error: repl with id: %d is not found", id),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": req.Text})
}

func (s *Server) write(w http.ResponseWriter, reply Reply) {
	if reply.Wait != nil {
		<-reply.Wait
	}
	status := reply.Status
	if status == 0 {
		status = http.StatusOK
	}
	if reply.Raw != "" || reply.JSON == nil {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply.Raw)
		return
	}
	writeJSON(w, status, reply.JSON)
}
