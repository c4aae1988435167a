package server

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	r.Handle("/ws", s.broker)

	r.HandleFunc("/api/auth/oauth/{provider}", s.oauthLogin).Methods(http.MethodPost)

	r.HandleFunc("/storage/{key}", s.putObject).Methods(http.MethodPut)
	r.HandleFunc("/storage/{key}", s.getObject).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.requireAuth)

	api.HandleFunc("/groups", s.listTeams).Methods(http.MethodGet)
	api.HandleFunc("/groups", s.createTeam).Methods(http.MethodPost)
	api.HandleFunc("/groups/{id}", s.getTeam).Methods(http.MethodGet)
	api.HandleFunc("/groups/{id}", s.updateTeam).Methods(http.MethodPut)
	api.HandleFunc("/groups/{id}", s.deleteTeam).Methods(http.MethodDelete)
	api.HandleFunc("/groups/{id}/join", s.joinTeam).Methods(http.MethodPost)
	api.HandleFunc("/groups/{id}/join", s.leaveTeam).Methods(http.MethodDelete)

	api.HandleFunc("/bookmarks", s.listBookmarks).Methods(http.MethodGet)
	api.HandleFunc("/bookmarks/{id}", s.addBookmark).Methods(http.MethodPut)
	api.HandleFunc("/bookmarks/{id}", s.removeBookmark).Methods(http.MethodDelete)

	api.HandleFunc("/chat/previews", s.listPreviews).Methods(http.MethodGet)
	api.HandleFunc("/chat/{teamId}/messages", s.chatHistory).Methods(http.MethodGet)
	api.HandleFunc("/chat/{teamId}/messages", s.sendMessage).Methods(http.MethodPost)
	api.HandleFunc("/chat/{teamId}/read", s.markRead).Methods(http.MethodPost)

	api.HandleFunc("/uploads/presign", s.presignUpload).Methods(http.MethodPost)

	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The upgrade needs the raw writer to hijack
		if r.URL.Path == "/ws" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("http request", "method", r.Method, "path", r.URL.Path,
			"status", rec.status, "duration", time.Since(start))
	})
}
