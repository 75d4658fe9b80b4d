package handlers

import (
	"net/http"

	"github.com/shrimpsizemoose/labsync/internal/app"
	"github.com/shrimpsizemoose/labsync/internal/models"
)

type CommentHandler struct {
	service *app.Service
}

func NewCommentHandler(service *app.Service) *CommentHandler {
	return &CommentHandler{service: service}
}

func (h *CommentHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	comments, err := h.service.RecentComments()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"comments": comments})
}

func (h *CommentHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var input models.CommentInput
	if !decodeJSON(w, r, &input) {
		return
	}

	comment, err := h.service.AddComment(input)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"comment": comment})
}
