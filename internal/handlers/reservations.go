package handlers

import (
	"net/http"

	"github.com/shrimpsizemoose/labsync/internal/app"
	"github.com/shrimpsizemoose/labsync/internal/models"
)

type ReservationHandler struct {
	service *app.Service
}

func NewReservationHandler(service *app.Service) *ReservationHandler {
	return &ReservationHandler{service: service}
}

func (h *ReservationHandler) HandleLabs(w http.ResponseWriter, r *http.Request) {
	labs, err := h.service.Labs()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"labs":  labs,
		"slots": h.service.Grid.Slots(),
	})
}

// HandleRules serves the lab rules, or the global rules when the route has
// no {lab}.
func (h *ReservationHandler) HandleRules(w http.ResponseWriter, r *http.Request) {
	lab := r.PathValue("lab")
	rules, err := h.service.Rules(lab)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"lab": lab, "rules": rules})
}

func (h *ReservationHandler) HandleAvailability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	day := q.Get("date")
	if day == "" {
		day = h.service.Today()
	}

	availability, err := h.service.Availability(r.PathValue("lab"), day, q.Get("start"), q.Get("end"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"date":  day,
		"slots": availability,
	})
}

func (h *ReservationHandler) HandleBook(w http.ResponseWriter, r *http.Request) {
	var req models.BookingRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	rows, err := h.service.Book(userFrom(r), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"reservations": rows})
}

func (h *ReservationHandler) HandleMine(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.MyReservations(userFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"reservations": rows})
}

func (h *ReservationHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	key := models.ReservationKey{
		Day:  r.PathValue("date"),
		Lab:  r.PathValue("lab"),
		Slot: r.PathValue("slot"),
	}
	if err := h.service.CancelReservation(userFrom(r), key); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
