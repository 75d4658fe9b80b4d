package handlers

import (
	"net/http"

	"github.com/shrimpsizemoose/labsync/internal/app"
	"github.com/shrimpsizemoose/labsync/internal/models"
)

type AdminHandler struct {
	service *app.Service
}

func NewAdminHandler(service *app.Service) *AdminHandler {
	return &AdminHandler{service: service}
}

func (h *AdminHandler) HandleReservations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rows, err := h.service.AllReservations(models.ReservationFilter{
		Day:   q.Get("date"),
		Lab:   q.Get("lab"),
		Email: q.Get("email"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"reservations": rows})
}

func (h *AdminHandler) HandleBlocks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	day := q.Get("date")
	if day == "" {
		day = h.service.Today()
	}

	blocks, err := h.service.Blocks(day, q.Get("lab"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"date": day, "blocks": blocks})
}

func (h *AdminHandler) HandleBlock(w http.ResponseWriter, r *http.Request) {
	var req models.BlockRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	displaced, err := h.service.BlockSchedule(req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"displaced": displaced})
}

func (h *AdminHandler) HandleSetRules(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Body string `json:"body"`
	}
	if !decodeJSON(w, r, &payload) {
		return
	}

	if err := h.service.SetRules(r.PathValue("lab"), payload.Body); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) HandleSetCapacity(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Capacity int `json:"capacity"`
	}
	if !decodeJSON(w, r, &payload) {
		return
	}

	if err := h.service.SetCapacity(r.PathValue("lab"), payload.Capacity); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) HandleGroupLimits(w http.ResponseWriter, r *http.Request) {
	limits, err := h.service.GroupLimits()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"group_limits": limits})
}

func (h *AdminHandler) HandleSetGroupLimit(w http.ResponseWriter, r *http.Request) {
	var limit models.GroupLimit
	if !decodeJSON(w, r, &limit) {
		return
	}

	if err := h.service.SetGroupLimit(limit); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) HandleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var input models.AccountInput
	if !decodeJSON(w, r, &input) {
		return
	}

	user, err := h.service.CreateAccount(input)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"user": user})
}

func (h *AdminHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, err := h.service.Dashboard()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dashboard)
}

func (h *AdminHandler) HandleStudents(w http.ResponseWriter, r *http.Request) {
	students, err := h.service.ListStudents()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"students": students})
}

func (h *AdminHandler) HandleSetAccess(w http.ResponseWriter, r *http.Request) {
	var change models.AccessChange
	if !decodeJSON(w, r, &change) {
		return
	}

	user, err := h.service.SetLabAccess(r.PathValue("email"), change)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"user": user})
}

func (h *AdminHandler) HandleRestricted(w http.ResponseWriter, r *http.Request) {
	day := r.URL.Query().Get("date")
	if day == "" {
		day = h.service.Today()
	}

	rows, err := h.service.RestrictedReservations(day)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"date": day, "reservations": rows})
}

func (h *AdminHandler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	var key models.ReservationKey
	if !decodeJSON(w, r, &key) {
		return
	}

	if err := h.service.ConfirmReservation(key); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
