// Package server exposes the analysis pipeline and conversation history
// over HTTP: a JSON API for clients plus a small server-rendered view for
// browsing verdicts locally.
package server

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/credlens/credlens/internal/pipeline"
	"github.com/credlens/credlens/internal/quota"
	"github.com/credlens/credlens/internal/store"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var md = goldmark.New()

// Server is the HTTP server for the analysis API and history views.
type Server struct {
	store    *store.Store
	ledger   *quota.Ledger
	analyzer *pipeline.Analyzer
	pages    map[string]*template.Template
	mux      *http.ServeMux
}

// New creates a new Server.
func New(s *store.Store, ledger *quota.Ledger, analyzer *pipeline.Analyzer) (*Server, error) {
	funcMap := template.FuncMap{
		"markdown": renderMarkdown,
		"percent": func(f float64) string {
			return fmt.Sprintf("%.0f%%", f*100)
		},
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
	}

	// Parse base template first
	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	// For each page template, clone the base and parse the page into the clone.
	// This gives each page its own {{define "content"}} and {{define "title"}}.
	pageNames := []string{"index.html", "thread.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		_, err = clone.ParseFS(templateFS, "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	srv := &Server{store: s, ledger: ledger, analyzer: analyzer, pages: pages, mux: http.NewServeMux()}
	srv.routes()
	return srv, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	// Static files
	staticSub, _ := fs.Sub(staticFS, "static")
	s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	// JSON API
	s.mux.HandleFunc("/api/predict", s.handlePredict)
	s.mux.HandleFunc("/api/chats/", s.handleChats)
	s.mux.HandleFunc("/api/user/", s.handleUser)

	// HTML views
	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/thread/", s.handleThread)
}

// --- JSON API ---

type predictRequest struct {
	UserID   string `json:"userId"`
	NewsText string `json:"newsText"`
	ChatID   string `json:"chatId"`
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req predictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	out, err := s.analyzer.Submit(r.Context(), req.UserID, req.NewsText, req.ChatID)
	if err != nil {
		var pe *pipeline.Error
		if errors.As(err, &pe) {
			if pe.Err != nil {
				log.Printf("predict failed (%s): %v", pe.Kind, pe.Err)
			}
			writeError(w, pe.StatusCode(), pe.Message)
			return
		}
		log.Printf("predict failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"result": out.Verdict,
		"chatId": out.ThreadID,
	})
}

// handleChats dispatches /api/chats/{userId} and /api/chats/{userId}/{chatId}.
func (s *Server) handleChats(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/chats/")
	parts := strings.SplitN(strings.Trim(path, "/"), "/", 2)
	if parts[0] == "" {
		writeError(w, http.StatusBadRequest, "Missing user id")
		return
	}
	userID := parts[0]

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			s.listChats(w, userID)
		case http.MethodDelete:
			s.deleteAllChats(w, userID)
		default:
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
		return
	}

	chatID := parts[1]
	switch r.Method {
	case http.MethodGet:
		s.getChatMessages(w, userID, chatID)
	case http.MethodPut:
		s.renameChat(w, r, userID, chatID)
	case http.MethodDelete:
		s.deleteChat(w, userID, chatID)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) listChats(w http.ResponseWriter, userID string) {
	threads, err := s.store.GetThreadList(userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load conversations")
		return
	}

	chats := make([]map[string]any, 0, len(threads))
	for _, t := range threads {
		chats = append(chats, map[string]any{
			"id":        t.ID,
			"title":     t.Title,
			"createdAt": t.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, chats)
}

func (s *Server) getChatMessages(w http.ResponseWriter, userID, chatID string) {
	thread, err := s.store.GetThread(userID, chatID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load conversation")
		return
	}
	if thread == nil {
		writeError(w, http.StatusNotFound, "Chat not found")
		return
	}

	messages, err := s.store.GetThreadMessages(userID, chatID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load messages")
		return
	}

	out := make([]map[string]any, 0, len(messages))
	for _, m := range messages {
		out = append(out, map[string]any{
			"id":        m.ID,
			"userText":  m.UserText,
			"verdict":   m.Verdict,
			"createdAt": m.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":       thread.ID,
		"title":    thread.Title,
		"messages": out,
	})
}

func (s *Server) renameChat(w http.ResponseWriter, r *http.Request, userID, chatID string) {
	var req struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Title) == "" {
		writeError(w, http.StatusBadRequest, "Missing title")
		return
	}

	if err := s.store.RenameThread(userID, chatID, strings.TrimSpace(req.Title)); err != nil {
		writeError(w, http.StatusNotFound, "Chat not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) deleteChat(w http.ResponseWriter, userID, chatID string) {
	if err := s.store.DeleteThread(userID, chatID); err != nil {
		writeError(w, http.StatusNotFound, "Chat not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) deleteAllChats(w http.ResponseWriter, userID string) {
	if err := s.store.DeleteAllThreads(userID); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete conversations")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handleUser serves /api/user/{userId}/profile.
func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/user/")
	parts := strings.SplitN(strings.Trim(path, "/"), "/", 2)
	if parts[0] == "" || len(parts) != 2 || parts[1] != "profile" {
		http.NotFound(w, r)
		return
	}
	userID := parts[0]

	u, err := s.store.GetOrCreateUser(userID, store.Today())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load profile")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"userId":     u.UserID,
		"plan":       u.Plan,
		"usageCount": u.UsageCount,
		"dailyLimit": s.ledger.LimitFor(u.Plan),
		"lastReset":  u.LastReset,
	})
}

// --- HTML views ---

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	stats, err := s.store.GetStats()
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	userID := r.URL.Query().Get("user")
	var threads []store.Thread
	if userID != "" {
		threads, _ = s.store.GetThreadList(userID)
	}

	s.render(w, "index.html", map[string]any{
		"Stats":   stats,
		"UserID":  userID,
		"Threads": threads,
	})
}

func (s *Server) handleThread(w http.ResponseWriter, r *http.Request) {
	threadID := strings.TrimPrefix(r.URL.Path, "/thread/")
	userID := r.URL.Query().Get("user")
	if threadID == "" || userID == "" {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	thread, _ := s.store.GetThread(userID, threadID)
	if thread == nil {
		http.NotFound(w, r)
		return
	}
	messages, _ := s.store.GetThreadMessages(userID, threadID)

	s.render(w, "thread.html", map[string]any{
		"Thread":   thread,
		"UserID":   userID,
		"Messages": messages,
	})
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		log.Printf("Template %s not found", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "base.html", data); err != nil {
		log.Printf("Error rendering template %s: %v", name, err)
	}
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// Serve starts the HTTP server on the given port.
func Serve(s *store.Store, ledger *quota.Ledger, analyzer *pipeline.Analyzer, port int) error {
	srv, err := New(s, ledger, analyzer)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	log.Printf("Server listening on http://%s", addr)
	return http.ListenAndServe(addr, srv.Handler())
}
