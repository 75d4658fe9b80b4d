package handlers

import (
	"net/http"
	"time"

	"github.com/shrimpsizemoose/labsync/internal/app"
	"github.com/shrimpsizemoose/labsync/internal/models"
)

// Register mounts the JSON API on mux.
func Register(mux *http.ServeMux, service *app.Service) {
	auth := NewAuth(service)
	authHandler := NewAuthHandler(service)
	reservationHandler := NewReservationHandler(service)
	commentHandler := NewCommentHandler(service)
	adminHandler := NewAdminHandler(service)
	limiter := NewLimiter(service.Config.Auth.LoginPerMinute, service.Config.Auth.LoginBurst, 10*time.Minute)

	admin := []string{models.RoleAdmin}
	staff := []string{models.RoleAdmin, models.RoleLabAdmin}

	mux.HandleFunc("POST /api/v1/auth/register", limiter.Wrap(authHandler.HandleRegister))
	mux.HandleFunc("POST /api/v1/auth/login", limiter.Wrap(authHandler.HandleLogin))
	mux.HandleFunc("POST /api/v1/auth/logout", authHandler.HandleLogout)
	mux.HandleFunc("GET /api/v1/me", auth.Require(authHandler.HandleMe))

	mux.HandleFunc("GET /api/v1/labs", reservationHandler.HandleLabs)
	mux.HandleFunc("GET /api/v1/rules", reservationHandler.HandleRules)
	mux.HandleFunc("GET /api/v1/labs/{lab}/rules", reservationHandler.HandleRules)
	mux.HandleFunc("GET /api/v1/labs/{lab}/availability", auth.Require(reservationHandler.HandleAvailability))
	mux.HandleFunc("POST /api/v1/reservations", auth.Require(reservationHandler.HandleBook))
	mux.HandleFunc("GET /api/v1/reservations", auth.Require(reservationHandler.HandleMine))
	mux.HandleFunc("DELETE /api/v1/reservations/{date}/{lab}/{slot}", auth.Require(reservationHandler.HandleCancel))

	mux.HandleFunc("GET /api/v1/comments", commentHandler.HandleList)
	mux.HandleFunc("POST /api/v1/comments", commentHandler.HandleCreate)

	mux.HandleFunc("GET /api/v1/admin/reservations", auth.Require(adminHandler.HandleReservations, admin...))
	mux.HandleFunc("GET /api/v1/admin/blocks", auth.Require(adminHandler.HandleBlocks, admin...))
	mux.HandleFunc("POST /api/v1/admin/blocks", auth.Require(adminHandler.HandleBlock, admin...))
	mux.HandleFunc("PUT /api/v1/admin/rules", auth.Require(adminHandler.HandleSetRules, admin...))
	mux.HandleFunc("PUT /api/v1/admin/labs/{lab}/rules", auth.Require(adminHandler.HandleSetRules, admin...))
	mux.HandleFunc("PUT /api/v1/admin/labs/{lab}/capacity", auth.Require(adminHandler.HandleSetCapacity, admin...))
	mux.HandleFunc("GET /api/v1/admin/group-limits", auth.Require(adminHandler.HandleGroupLimits, admin...))
	mux.HandleFunc("PUT /api/v1/admin/group-limits", auth.Require(adminHandler.HandleSetGroupLimit, admin...))
	mux.HandleFunc("POST /api/v1/admin/accounts", auth.Require(adminHandler.HandleCreateAccount, admin...))
	mux.HandleFunc("GET /api/v1/admin/dashboard", auth.Require(adminHandler.HandleDashboard, admin...))

	mux.HandleFunc("GET /api/v1/admin/students", auth.Require(adminHandler.HandleStudents, staff...))
	mux.HandleFunc("PUT /api/v1/admin/users/{email}/access", auth.Require(adminHandler.HandleSetAccess, staff...))
	mux.HandleFunc("GET /api/v1/admin/restricted-reservations", auth.Require(adminHandler.HandleRestricted, staff...))
	mux.HandleFunc("POST /api/v1/admin/reservations/confirm", auth.Require(adminHandler.HandleConfirm, staff...))
}
