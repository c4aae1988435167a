package server

import (
	"net/http"

	"github.com/gorilla/mux"
)

func (s *Server) listBookmarks(w http.ResponseWriter, r *http.Request) {
	teams, err := s.models.Bookmarks.List(userFromContext(r))
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, teams)
}

func (s *Server) addBookmark(w http.ResponseWriter, r *http.Request) {
	if err := s.models.Bookmarks.Add(userFromContext(r), mux.Vars(r)["id"]); err != nil {
		s.respondErr(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) removeBookmark(w http.ResponseWriter, r *http.Request) {
	if err := s.models.Bookmarks.Remove(userFromContext(r), mux.Vars(r)["id"]); err != nil {
		s.respondErr(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
