package server

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/honganh1206/stargazer/preview"
	"github.com/honganh1206/stargazer/server/data"
)

func queryInt(r *http.Request, name string, fallback int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func (s *Server) listTeams(w http.ResponseWriter, r *http.Request) {
	page, err := s.models.Teams.List(userFromContext(r), r.URL.Query().Get("keyword"),
		queryInt(r, "page", 0), queryInt(r, "size", 20))
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, page)
}

func (s *Server) createTeam(w http.ResponseWriter, r *http.Request) {
	var in data.TeamInput
	if err := decodeJSON(r, &in); err != nil {
		handleError(w, err)
		return
	}

	userID := userFromContext(r)
	team, err := s.models.Teams.Create(userID, in)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	s.pushPreview(team.ID, userID)
	writeJSON(w, http.StatusCreated, team)
}

func (s *Server) getTeam(w http.ResponseWriter, r *http.Request) {
	team, err := s.models.Teams.Get(mux.Vars(r)["id"], userFromContext(r))
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, team)
}

func (s *Server) updateTeam(w http.ResponseWriter, r *http.Request) {
	var in data.TeamInput
	if err := decodeJSON(r, &in); err != nil {
		handleError(w, err)
		return
	}

	team, err := s.models.Teams.Update(mux.Vars(r)["id"], userFromContext(r), in)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, team)
}

func (s *Server) deleteTeam(w http.ResponseWriter, r *http.Request) {
	if err := s.models.Teams.Delete(mux.Vars(r)["id"], userFromContext(r)); err != nil {
		s.respondErr(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) joinTeam(w http.ResponseWriter, r *http.Request) {
	userID := userFromContext(r)
	team, err := s.models.Teams.Join(mux.Vars(r)["id"], userID)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	// The joiner's list has no entry for this chat yet
	s.pushPreview(team.ID, userID)
	writeJSON(w, http.StatusOK, team)
}

func (s *Server) leaveTeam(w http.ResponseWriter, r *http.Request) {
	if err := s.models.Teams.Leave(mux.Vars(r)["id"], userFromContext(r)); err != nil {
		s.respondErr(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// pushPreview sends userID the current preview of teamID.
func (s *Server) pushPreview(teamID, userID string) {
	p, err := s.models.Chats.Preview(teamID, userID)
	if err != nil {
		s.logger.Warn("compute preview", "team", teamID, "user", userID, "err", err)
		return
	}

	s.broker.publish(userID, preview.Event{
		TeamID:        p.TeamID,
		UnreadCount:   p.UnreadCount,
		RecentMessage: p.RecentMessage,
	})
}
