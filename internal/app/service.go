package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/labsync/internal/booking"
	"github.com/shrimpsizemoose/labsync/internal/metrics"
	"github.com/shrimpsizemoose/labsync/internal/models"
	"github.com/shrimpsizemoose/labsync/internal/slots"
	"github.com/shrimpsizemoose/labsync/internal/store"
)

var (
	ErrUnauthenticated = errors.New("not logged in")
	ErrEmailTaken      = errors.New("email already registered")
	ErrInvalidDomain   = errors.New("email domain not allowed")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidInput    = errors.New("invalid input")
	ErrUserNotFound    = errors.New("user not found")
)

type Service struct {
	Config   *Config
	Store    store.LabStore
	Sessions Sessions
	Auth     *Authenticator
	Grid     *slots.Grid

	loc *time.Location
	now func() time.Time

	// bookMu serializes commits that read and then rewrite a day.
	bookMu sync.Mutex
}

func NewService(configPath string) (*Service, error) {
	config, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	store, err := NewStore(config.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to init store: %w", err)
	}

	sessions, err := newSessions(config)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to init sessions: %w", err)
	}

	service, err := NewServiceWith(config, store, sessions)
	if err != nil {
		store.Close()
		sessions.Close()
		return nil, err
	}
	return service, nil
}

func newSessions(config *Config) (Sessions, error) {
	ttl, err := config.SessionTTL()
	if err != nil {
		return nil, err
	}
	if config.Auth.RedisURL == "" {
		logger.Info.Printf("No redis_url configured, keeping sessions in memory")
		return NewMemorySessions(ttl), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return NewRedisSessions(ctx, config.Auth.RedisURL, ttl)
}

// NewServiceWith wires a service from already opened parts and seeds the
// configured lab capacities.
func NewServiceWith(config *Config, store store.LabStore, sessions Sessions) (*Service, error) {
	grid, err := config.Grid()
	if err != nil {
		return nil, err
	}
	loc, err := config.Location()
	if err != nil {
		return nil, err
	}

	defaults := make([]models.LabCapacity, 0, len(config.Labs))
	for _, l := range config.Labs {
		defaults = append(defaults, models.LabCapacity{Lab: l.Name, Capacity: l.Capacity})
	}
	if err := store.SeedLabCapacities(defaults); err != nil {
		return nil, fmt.Errorf("failed to seed lab capacities: %w", err)
	}

	return &Service{
		Config:   config,
		Store:    store,
		Sessions: sessions,
		Auth:     NewAuthenticator(config.Auth.Accounts, store),
		Grid:     grid,
		loc:      loc,
		now:      time.Now,
	}, nil
}

func (s *Service) Now() time.Time {
	return s.now().In(s.loc)
}

func (s *Service) Today() string {
	return s.Now().Format(models.DateLayout)
}

func invalid(err error) error {
	return fmt.Errorf("%w: %v", ErrInvalidInput, err)
}

func hasDomain(email, domain string) bool {
	if domain == "" {
		return true
	}
	return strings.HasSuffix(strings.ToLower(email), "@"+strings.ToLower(domain))
}

func (s *Service) Register(reg models.Registration) (*models.User, error) {
	reg.Email = strings.TrimSpace(reg.Email)
	if err := reg.Validate(); err != nil {
		return nil, invalid(err)
	}
	if !hasDomain(reg.Email, s.Config.Registration.StudentDomain) {
		return nil, fmt.Errorf("%w: students register with @%s", ErrInvalidDomain, s.Config.Registration.StudentDomain)
	}
	if err := s.ensureFreeEmail(reg.Email); err != nil {
		return nil, err
	}

	hash, err := HashPassword(reg.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:        reg.Email,
		FirstName:    reg.FirstName,
		LastName:     reg.LastName,
		Role:         models.RoleStudent,
		StudentCode:  reg.StudentCode,
		PasswordHash: hash,
	}
	if err := s.Store.CreateUser(user); err != nil {
		return nil, err
	}

	logger.Info.Printf("Registered student %s", user.Email)
	return user, nil
}

func (s *Service) ensureFreeEmail(email string) error {
	if s.Auth.ConfigAccount(email) != nil {
		return ErrEmailTaken
	}
	existing, err := s.Store.GetUser(email)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrEmailTaken
	}
	return nil
}

func (s *Service) Login(ctx context.Context, creds models.Credentials) (*models.Session, *models.User, error) {
	if err := creds.Validate(); err != nil {
		return nil, nil, invalid(err)
	}

	user, err := s.Auth.Authenticate(creds.Email, creds.Password)
	if err != nil {
		return nil, nil, err
	}

	session, err := s.Sessions.Create(ctx, user.Email, user.Role)
	if err != nil {
		return nil, nil, err
	}

	logger.Debug.Printf("Login %s (%s)", user.Email, user.Role)
	return session, user, nil
}

func (s *Service) Logout(ctx context.Context, token string) error {
	return s.Sessions.Revoke(ctx, token)
}

// CurrentUser resolves a session token to the user behind it.
func (s *Service) CurrentUser(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}
	session, err := s.Sessions.Lookup(ctx, token)
	if errors.Is(err, ErrSessionNotFound) {
		return nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, err
	}

	user, err := s.Auth.UserFor(session.Email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUnauthenticated
	}
	return user, nil
}

func (s *Service) capacities() (map[string]int, error) {
	rows, err := s.Store.ListLabCapacities()
	if err != nil {
		return nil, err
	}
	capacities := make(map[string]int, len(rows))
	for _, c := range rows {
		capacities[c.Lab] = c.Capacity
	}
	return capacities, nil
}

// Labs returns the configured labs with their current capacities.
func (s *Service) Labs() ([]booking.Lab, error) {
	capacities, err := s.capacities()
	if err != nil {
		return nil, err
	}
	return s.Config.BookingLabs(capacities), nil
}

func (s *Service) Lab(name string) (booking.Lab, error) {
	labs, err := s.Labs()
	if err != nil {
		return booking.Lab{}, err
	}
	for _, l := range labs {
		if strings.EqualFold(l.Name, name) {
			return l, nil
		}
	}
	return booking.Lab{}, fmt.Errorf("%w: %s", booking.ErrUnknownLab, name)
}

func (s *Service) labConfig(name string) *LabConfig {
	for i := range s.Config.Labs {
		if s.Config.Labs[i].Name == name {
			return &s.Config.Labs[i]
		}
	}
	return nil
}

// Rules returns the rules text for lab, or the global rules for "".
// Stored rules win over the config defaults.
func (s *Service) Rules(lab string) (string, error) {
	fallback := s.Config.Schedule.GlobalRules
	if lab != "" {
		l, err := s.Lab(lab)
		if err != nil {
			return "", err
		}
		lab = l.Name
		fallback = s.labConfig(lab).Rules
	}

	rules, err := s.Store.GetLabRules(lab)
	if err != nil {
		return "", err
	}
	if rules == nil || rules.Body == "" {
		return fallback, nil
	}
	return rules.Body, nil
}

func (s *Service) SetRules(lab, body string) error {
	if lab != "" {
		l, err := s.Lab(lab)
		if err != nil {
			return err
		}
		lab = l.Name
	}
	if strings.TrimSpace(body) == "" {
		return fmt.Errorf("%w: rules text is empty", ErrInvalidInput)
	}
	return s.Store.SetLabRules(models.LabRules{Lab: lab, Body: body})
}

func (s *Service) parseDay(day string) (time.Time, error) {
	t, err := time.ParseInLocation(models.DateLayout, day, s.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad date %q", ErrInvalidInput, day)
	}
	return t, nil
}

// Availability reports free seats for [start, end) in lab on day.
func (s *Service) Availability(lab, day, start, end string) ([]booking.SlotAvailability, error) {
	l, err := s.Lab(lab)
	if err != nil {
		return nil, err
	}
	if _, err := s.parseDay(day); err != nil {
		return nil, err
	}
	wanted, err := s.Grid.Range(start, end)
	if err != nil {
		return nil, err
	}
	if err := booking.CheckLatestSlot(l, start, end); err != nil {
		return nil, err
	}

	snap, err := s.Store.GetDaySnapshot(day, l.Name)
	if err != nil {
		return nil, err
	}
	return booking.CheckAvailability(snap, l, wanted)
}

// Book reserves seats for user. The access flag and the group limit are
// re-read right before the commit.
func (s *Service) Book(user *models.User, req models.BookingRequest) ([]models.Reservation, error) {
	rows, err := s.book(user, req)
	if err != nil {
		metrics.BookingRejectionsTotal.WithLabelValues(s.labLabel(req.Lab), booking.Reason(err)).Inc()
		return nil, err
	}
	return rows, nil
}

// labLabel maps a client-supplied lab name to a configured one, so metric
// labels stay bounded.
func (s *Service) labLabel(name string) string {
	for _, l := range s.Config.Labs {
		if strings.EqualFold(l.Name, name) {
			return l.Name
		}
	}
	return "unknown"
}

func (s *Service) book(user *models.User, req models.BookingRequest) ([]models.Reservation, error) {
	if err := req.Validate(); err != nil {
		return nil, invalid(err)
	}

	lab, err := s.Lab(req.Lab)
	if err != nil {
		return nil, err
	}
	day, err := s.parseDay(req.Day)
	if err != nil {
		return nil, err
	}
	wanted, err := s.Grid.Range(req.Start, req.End)
	if err != nil {
		return nil, err
	}

	now := s.Now()
	if err := booking.ValidateWindow(lab, day, wanted, req.End, now); err != nil {
		return nil, err
	}

	current, err := s.Auth.UserFor(user.Email)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ErrUnauthenticated
	}

	allowed, expired, err := booking.HasAccess(current, lab, now)
	if err != nil {
		return nil, err
	}
	if expired {
		s.revokeAccess(current.Email)
	}

	request := booking.Request{
		Lab:       lab.Name,
		Day:       req.Day,
		Slots:     wanted,
		Kind:      req.Kind,
		GroupName: strings.TrimSpace(req.GroupName),
		Headcount: req.Headcount,
		Purpose:   strings.TrimSpace(req.Purpose),
	}
	request.Normalize(lab)

	var limit *models.GroupLimit
	if request.Kind == models.KindGroup {
		limit, err = s.Store.GetGroupLimit(models.KindGroup)
		if err != nil {
			return nil, err
		}
	}

	rows := booking.Rows(request, current, now)

	s.bookMu.Lock()
	defer s.bookMu.Unlock()

	err = s.Store.BookReservations(request.Day, lab.Name, rows, func(snap *models.DaySnapshot) error {
		return booking.ValidateCommit(snap, lab, request, current, allowed, limit)
	})
	if err != nil {
		return nil, err
	}

	kind := request.Kind
	if kind == "" {
		kind = models.KindIndividual
	}
	metrics.BookingsTotal.WithLabelValues(lab.Name, kind).Inc()
	metrics.BookedSlotsTotal.WithLabelValues(lab.Name).Add(float64(len(rows)))
	metrics.BookingHeadcount.WithLabelValues(lab.Name).Observe(float64(rows[0].Headcount))

	logger.Info.Printf("Booked %s %s %s-%s for %s (%d seats)",
		lab.Name, request.Day, req.Start, req.End, current.Email, rows[0].Headcount)
	return rows, nil
}

func (s *Service) revokeAccess(email string) {
	if _, err := s.Store.SetLabAccess(email, false, nil); err != nil {
		logger.Error.Printf("Failed to revoke expired access for %s: %v", email, err)
		return
	}
	logger.Info.Printf("Temporary lab access of %s expired", email)
}

// ExpireTemporaryAccess revokes every temporary grant whose expiry date
// already passed.
func (s *Service) ExpireTemporaryAccess() (int, error) {
	users, err := s.Store.ListUsers("")
	if err != nil {
		return 0, err
	}

	today := s.Now()
	revoked := 0
	for i := range users {
		u := &users[i]
		if !u.LabAccess {
			continue
		}
		expiry, temporary, err := u.ExpiryDate(s.loc)
		if err != nil {
			logger.Error.Printf("Skipping %s: %v", u.Email, err)
			continue
		}
		if temporary && today.Format(models.DateLayout) > expiry.Format(models.DateLayout) {
			s.revokeAccess(u.Email)
			revoked++
		}
	}
	return revoked, nil
}

func (s *Service) MyReservations(user *models.User) ([]models.Reservation, error) {
	return s.Store.ListReservations(models.ReservationFilter{Email: user.Email})
}

// CancelReservation removes one of the user's own rows.
func (s *Service) CancelReservation(user *models.User, key models.ReservationKey) error {
	key.Email = user.Email
	if err := key.Validate(); err != nil {
		return invalid(err)
	}
	lab, err := s.Lab(key.Lab)
	if err != nil {
		return err
	}
	key.Lab = lab.Name

	n, err := s.Store.DeleteReservation(key)
	if err != nil {
		return err
	}
	if n == 0 {
		return booking.ErrNotFound
	}
	logger.Info.Printf("Cancelled %s %s %s for %s", key.Lab, key.Day, key.Slot, key.Email)
	return nil
}

func (s *Service) AllReservations(filter models.ReservationFilter) ([]models.Reservation, error) {
	return s.Store.ListReservations(filter)
}

// BlockSchedule blocks [start, end) and returns the reservations it
// displaced.
func (s *Service) BlockSchedule(req models.BlockRequest) ([]models.Reservation, error) {
	if err := req.Validate(); err != nil {
		return nil, invalid(err)
	}
	lab, err := s.Lab(req.Lab)
	if err != nil {
		return nil, err
	}
	if _, err := s.parseDay(req.Day); err != nil {
		return nil, err
	}
	wanted, err := s.Grid.Range(req.Start, req.End)
	if err != nil {
		return nil, err
	}

	blocks := make([]models.ScheduleBlock, 0, len(wanted))
	for _, slot := range wanted {
		blocks = append(blocks, models.ScheduleBlock{
			Day:    req.Day,
			Slot:   slot,
			Lab:    lab.Name,
			Reason: strings.TrimSpace(req.Reason),
		})
	}

	s.bookMu.Lock()
	displaced, err := s.Store.BlockSlots(blocks)
	s.bookMu.Unlock()
	if err != nil {
		return nil, err
	}

	metrics.BlockedSlotsTotal.WithLabelValues(lab.Name).Add(float64(len(blocks)))
	metrics.DisplacedReservationsTotal.WithLabelValues(lab.Name).Add(float64(len(displaced)))
	logger.Info.Printf("Blocked %s %s %s-%s, %d reservations displaced",
		lab.Name, req.Day, req.Start, req.End, len(displaced))
	return displaced, nil
}

func (s *Service) Blocks(day, lab string) ([]models.ScheduleBlock, error) {
	if lab != "" {
		l, err := s.Lab(lab)
		if err != nil {
			return nil, err
		}
		lab = l.Name
	}
	return s.Store.ListBlocks(day, lab)
}

// SetLabAccess applies an access decision to a stored student. A temporary
// grant of N days stays valid through today + N.
func (s *Service) SetLabAccess(email string, change models.AccessChange) (*models.User, error) {
	if err := change.Validate(); err != nil {
		return nil, invalid(err)
	}
	if change.Days > s.Config.Schedule.MaxTempAccessDays {
		return nil, fmt.Errorf("%w: at most %d days", ErrInvalidInput, s.Config.Schedule.MaxTempAccessDays)
	}

	target, err := s.Store.GetUser(email)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, ErrUserNotFound
	}
	if target.Role != models.RoleStudent {
		return nil, fmt.Errorf("%w: %s is not a student", ErrForbidden, email)
	}

	var (
		access bool
		expiry *string
	)
	switch change.Mode {
	case "enable":
		access = true
	case "disable":
		access = false
	case "temporary":
		access = true
		date := s.Now().AddDate(0, 0, change.Days).Format(models.DateLayout)
		expiry = &date
	}

	n, err := s.Store.SetLabAccess(email, access, expiry)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrUserNotFound
	}

	logger.Info.Printf("Lab access for %s set to %s", email, change.Mode)
	return s.Store.GetUser(email)
}

func (s *Service) ListStudents() ([]models.User, error) {
	return s.Store.ListUsers(models.RoleStudent)
}

// CreateAccount adds an admin or lab admin to the users table. Lab admins
// always get restricted-lab access.
func (s *Service) CreateAccount(input models.AccountInput) (*models.User, error) {
	input.Email = strings.TrimSpace(input.Email)
	if err := input.Validate(); err != nil {
		return nil, invalid(err)
	}
	if !hasDomain(input.Email, s.Config.Registration.StaffDomain) {
		return nil, fmt.Errorf("%w: staff accounts use @%s", ErrInvalidDomain, s.Config.Registration.StaffDomain)
	}
	if err := s.ensureFreeEmail(input.Email); err != nil {
		return nil, err
	}

	hash, err := HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:        input.Email,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Role:         input.Role,
		PasswordHash: hash,
		LabAccess:    input.Role == models.RoleLabAdmin,
	}
	if err := s.Store.CreateUser(user); err != nil {
		return nil, err
	}

	logger.Info.Printf("Created %s account %s", user.Role, user.Email)
	return user, nil
}

func (s *Service) GroupLimits() ([]models.GroupLimit, error) {
	return s.Store.ListGroupLimits()
}

func (s *Service) SetGroupLimit(limit models.GroupLimit) error {
	if err := limit.Validate(); err != nil {
		return invalid(err)
	}
	return s.Store.SetGroupLimit(limit)
}

func (s *Service) Capacities() ([]models.LabCapacity, error) {
	labs, err := s.Labs()
	if err != nil {
		return nil, err
	}
	result := make([]models.LabCapacity, 0, len(labs))
	for _, l := range labs {
		result = append(result, models.LabCapacity{Lab: l.Name, Capacity: l.Capacity})
	}
	return result, nil
}

func (s *Service) SetCapacity(lab string, capacity int) error {
	l, err := s.Lab(lab)
	if err != nil {
		return err
	}
	c := models.LabCapacity{Lab: l.Name, Capacity: capacity}
	if err := c.Validate(); err != nil {
		return invalid(err)
	}
	if err := s.Store.SetLabCapacity(c); err != nil {
		return err
	}
	logger.Info.Printf("Capacity of %s set to %d", l.Name, capacity)
	return nil
}

func (s *Service) ConfirmReservation(key models.ReservationKey) error {
	if err := key.Validate(); err != nil {
		return invalid(err)
	}
	lab, err := s.Lab(key.Lab)
	if err != nil {
		return err
	}
	key.Lab = lab.Name

	n, err := s.Store.ConfirmReservation(key)
	if err != nil {
		return err
	}
	if n == 0 {
		return booking.ErrNotFound
	}
	return nil
}

// RestrictedReservations lists the rows of every restricted lab for day.
func (s *Service) RestrictedReservations(day string) ([]models.Reservation, error) {
	labs, err := s.Labs()
	if err != nil {
		return nil, err
	}

	var result []models.Reservation
	for _, l := range labs {
		if !l.Restricted {
			continue
		}
		rows, err := s.Store.ListReservations(models.ReservationFilter{Day: day, Lab: l.Name})
		if err != nil {
			return nil, err
		}
		result = append(result, rows...)
	}
	return result, nil
}

func (s *Service) AddComment(input models.CommentInput) (*models.Comment, error) {
	if err := input.Validate(); err != nil {
		return nil, invalid(err)
	}
	comment := &models.Comment{
		Name:      strings.TrimSpace(input.Name),
		Email:     strings.TrimSpace(input.Email),
		Body:      strings.TrimSpace(input.Body),
		CreatedAt: s.now().Unix(),
	}
	if err := s.Store.CreateComment(comment); err != nil {
		return nil, err
	}
	return comment, nil
}

func (s *Service) RecentComments() ([]models.Comment, error) {
	return s.Store.ListRecentComments(s.Config.Schedule.RecentComments)
}

type Dashboard struct {
	*models.ReservationStats
	Students   int                  `json:"students"`
	Capacities []models.LabCapacity `json:"capacities"`
}

func (s *Service) Dashboard() (*Dashboard, error) {
	stats, err := s.Store.FetchReservationStats(10)
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation stats: %w", err)
	}
	students, err := s.ListStudents()
	if err != nil {
		return nil, err
	}
	capacities, err := s.Capacities()
	if err != nil {
		return nil, err
	}
	return &Dashboard{
		ReservationStats: stats,
		Students:         len(students),
		Capacities:       capacities,
	}, nil
}

func (s *Service) Close() error {
	var errs []error

	if err := s.Store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store: %w", err))
	}
	if err := s.Sessions.Close(); err != nil {
		errs = append(errs, fmt.Errorf("sessions: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors while closing: %v", errs)
	}
	return nil
}
