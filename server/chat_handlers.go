package server

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

func (s *Server) listPreviews(w http.ResponseWriter, r *http.Request) {
	previews, err := s.models.Chats.Previews(userFromContext(r))
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, previews)
}

func (s *Server) chatHistory(w http.ResponseWriter, r *http.Request) {
	var before int64
	if v := r.URL.Query().Get("before"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			handleError(w, &HTTPError{Code: http.StatusBadRequest, Message: "Invalid cursor"})
			return
		}
		before = n
	}

	page, err := s.models.Chats.History(mux.Vars(r)["teamId"], userFromContext(r), before, queryInt(r, "size", 30))
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, page)
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, err)
		return
	}

	teamID := mux.Vars(r)["teamId"]
	msg, err := s.models.Chats.Append(teamID, userFromContext(r), req.Content)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	members, err := s.models.Teams.Members(teamID)
	if err != nil {
		s.logger.Warn("list members for fan-out", "team", teamID, "err", err)
	}
	for _, member := range members {
		s.pushPreview(teamID, member)
	}

	writeJSON(w, http.StatusCreated, msg)
}

func (s *Server) markRead(w http.ResponseWriter, r *http.Request) {
	teamID := mux.Vars(r)["teamId"]
	userID := userFromContext(r)

	if err := s.models.Chats.MarkRead(teamID, userID); err != nil {
		s.respondErr(w, r, err)
		return
	}

	s.pushPreview(teamID, userID)
	w.WriteHeader(http.StatusNoContent)
}
