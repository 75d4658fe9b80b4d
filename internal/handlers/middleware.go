package handlers

import (
	"context"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/labsync/internal/app"
	"github.com/shrimpsizemoose/labsync/internal/metrics"
	"github.com/shrimpsizemoose/labsync/internal/models"
)

type contextKey string

const userKey contextKey = "user"

func userFrom(r *http.Request) *models.User {
	user, _ := r.Context().Value(userKey).(*models.User)
	return user
}

func bearerToken(r *http.Request, header string) string {
	value := r.Header.Get(header)
	if !strings.HasPrefix(value, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(value, "Bearer ")
}

// Auth resolves the session token and, when roles are given, requires the
// user to hold one of them.
type Auth struct {
	service *app.Service
}

func NewAuth(service *app.Service) *Auth {
	return &Auth{service: service}
}

func (a *Auth) Require(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r, a.service.Config.Auth.TokenHeader)
		user, err := a.service.CurrentUser(r.Context(), token)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if len(roles) > 0 && !slices.Contains(roles, user.Role) {
			logger.Debug.Printf("%s (%s) denied %s %s", user.Email, user.Role, r.Method, r.URL.Path)
			writeError(w, r, app.ErrForbidden)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), userKey, user)))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// Instrument observes request duration per route pattern.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}
		metrics.APIRequestDuration.WithLabelValues(
			path,
			r.Method,
			strconv.Itoa(rec.status),
		).Observe(time.Since(start).Seconds())
	})
}
