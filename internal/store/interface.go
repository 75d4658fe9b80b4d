package store

import (
	"database/sql"
	"fmt"
	"io/fs"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/shrimpsizemoose/labsync/internal/booking"
	"github.com/shrimpsizemoose/labsync/internal/models"
)

type LabStore interface {
	Close() error
	ApplyMigrations(fsys fs.FS) error

	CreateUser(user *models.User) error
	GetUser(email string) (*models.User, error)
	ListUsers(role string) ([]models.User, error)
	SetLabAccess(email string, access bool, expiry *string) (int64, error)

	ListLabCapacities() ([]models.LabCapacity, error)
	SetLabCapacity(capacity models.LabCapacity) error
	SeedLabCapacities(defaults []models.LabCapacity) error
	InsertLabCapacity(capacity models.LabCapacity) (bool, error)

	ListGroupLimits() ([]models.GroupLimit, error)
	GetGroupLimit(kind string) (*models.GroupLimit, error)
	SetGroupLimit(limit models.GroupLimit) error
	InsertGroupLimit(limit models.GroupLimit) (bool, error)

	GetLabRules(lab string) (*models.LabRules, error)
	SetLabRules(rules models.LabRules) error
	InsertLabRules(rules models.LabRules) (bool, error)

	ListBlocks(day, lab string) ([]models.ScheduleBlock, error)
	BlockSlots(blocks []models.ScheduleBlock) ([]models.Reservation, error)
	ImportBlocks(blocks []models.ScheduleBlock) (int64, error)

	GetDaySnapshot(day, lab string) (*models.DaySnapshot, error)
	BookReservations(day, lab string, rows []models.Reservation, check func(*models.DaySnapshot) error) error
	ListReservations(filter models.ReservationFilter) ([]models.Reservation, error)
	ListReservationDays(from string) ([]string, error)
	DeleteReservation(key models.ReservationKey) (int64, error)
	ConfirmReservation(key models.ReservationKey) (int64, error)

	CreateComment(comment *models.Comment) error
	CommentExists(email, body string, createdAt int64) (bool, error)
	ListRecentComments(limit int) ([]models.Comment, error)

	FetchReservationStats(topUsers int) (*models.ReservationStats, error)
}

// BaseStore provides common functionality for different DB implementations.
// Queries are written with ? placeholders and rebound for the driver.
type BaseStore struct {
	DB *sqlx.DB
	// Translate rewrites the Postgres-flavoured migrations for the dialect.
	Translate func(string) string
	// LockDay serializes bookings for one lab and day inside tx.
	LockDay func(tx *sqlx.Tx, day, lab string) error
}

func (s *BaseStore) Close() error {
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}

// ApplyMigrations applies every .sql file in fsys in lexical order.
func (s *BaseStore) ApplyMigrations(fsys fs.FS) error {
	files, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}

	for _, file := range files {
		if !strings.HasSuffix(file.Name(), ".sql") {
			continue
		}

		content, err := fs.ReadFile(fsys, file.Name())
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", file.Name(), err)
		}

		query := string(content)
		if s.Translate != nil {
			query = s.Translate(query)
		}

		if _, err := s.DB.Exec(query); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", file.Name(), err)
		}
	}

	return nil
}

func (s *BaseStore) q(query string) string {
	return s.DB.Rebind(query)
}

func (s *BaseStore) CreateUser(user *models.User) error {
	_, err := s.DB.NamedExec(`
		INSERT INTO users (email, first_name, last_name, role, student_code, password_hash, lab_access, access_expiry)
		VALUES (:email, :first_name, :last_name, :role, :student_code, :password_hash, :lab_access, :access_expiry)
	`, user)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *BaseStore) GetUser(email string) (*models.User, error) {
	var user models.User
	err := s.DB.Get(&user, s.q(`
		SELECT email, first_name, last_name, role, student_code, password_hash, lab_access, access_expiry
		FROM users
		WHERE email = ?
	`), email)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (s *BaseStore) ListUsers(role string) ([]models.User, error) {
	query := `
		SELECT email, first_name, last_name, role, student_code, password_hash, lab_access, access_expiry
		FROM users`
	var args []interface{}
	if role != "" {
		query += ` WHERE role = ?`
		args = append(args, role)
	}
	query += ` ORDER BY email`

	var users []models.User
	if err := s.DB.Select(&users, s.q(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func (s *BaseStore) SetLabAccess(email string, access bool, expiry *string) (int64, error) {
	res, err := s.DB.Exec(s.q(`
		UPDATE users SET lab_access = ?, access_expiry = ?
		WHERE email = ?
	`), access, expiry, email)
	if err != nil {
		return 0, fmt.Errorf("failed to update lab access: %w", err)
	}
	return res.RowsAffected()
}

func (s *BaseStore) ListLabCapacities() ([]models.LabCapacity, error) {
	var capacities []models.LabCapacity
	err := s.DB.Select(&capacities, `SELECT lab, capacity FROM lab_capacities ORDER BY lab`)
	if err != nil {
		return nil, fmt.Errorf("failed to list lab capacities: %w", err)
	}
	return capacities, nil
}

func (s *BaseStore) SetLabCapacity(capacity models.LabCapacity) error {
	_, err := s.DB.NamedExec(`
		INSERT INTO lab_capacities (lab, capacity)
		VALUES (:lab, :capacity)
		ON CONFLICT(lab) DO UPDATE SET
		capacity = excluded.capacity
	`, capacity)
	if err != nil {
		return fmt.Errorf("failed to set lab capacity: %w", err)
	}
	return nil
}

func (s *BaseStore) SeedLabCapacities(defaults []models.LabCapacity) error {
	for _, c := range defaults {
		_, err := s.DB.NamedExec(`
			INSERT INTO lab_capacities (lab, capacity)
			VALUES (:lab, :capacity)
			ON CONFLICT(lab) DO NOTHING
		`, c)
		if err != nil {
			return fmt.Errorf("failed to seed capacity for %s: %w", c.Lab, err)
		}
	}
	return nil
}

// insertIfAbsent runs an INSERT ... ON CONFLICT DO NOTHING and reports
// whether a row was added.
func (s *BaseStore) insertIfAbsent(query string, arg interface{}) (bool, error) {
	res, err := s.DB.NamedExec(query, arg)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// InsertLabCapacity adds a capacity only for labs that have none yet.
func (s *BaseStore) InsertLabCapacity(c models.LabCapacity) (bool, error) {
	added, err := s.insertIfAbsent(`
		INSERT INTO lab_capacities (lab, capacity)
		VALUES (:lab, :capacity)
		ON CONFLICT(lab) DO NOTHING
	`, c)
	if err != nil {
		return false, fmt.Errorf("failed to insert capacity for %s: %w", c.Lab, err)
	}
	return added, nil
}

func (s *BaseStore) ListGroupLimits() ([]models.GroupLimit, error) {
	var limits []models.GroupLimit
	if err := s.DB.Select(&limits, `SELECT kind, max_headcount FROM group_limits ORDER BY kind`); err != nil {
		return nil, fmt.Errorf("failed to list group limits: %w", err)
	}
	return limits, nil
}

func (s *BaseStore) GetGroupLimit(kind string) (*models.GroupLimit, error) {
	var limit models.GroupLimit
	err := s.DB.Get(&limit, s.q(`SELECT kind, max_headcount FROM group_limits WHERE kind = ?`), kind)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group limit: %w", err)
	}
	return &limit, nil
}

func (s *BaseStore) SetGroupLimit(limit models.GroupLimit) error {
	_, err := s.DB.NamedExec(`
		INSERT INTO group_limits (kind, max_headcount)
		VALUES (:kind, :max_headcount)
		ON CONFLICT(kind) DO UPDATE SET
		max_headcount = excluded.max_headcount
	`, limit)
	if err != nil {
		return fmt.Errorf("failed to set group limit: %w", err)
	}
	return nil
}

func (s *BaseStore) InsertGroupLimit(limit models.GroupLimit) (bool, error) {
	added, err := s.insertIfAbsent(`
		INSERT INTO group_limits (kind, max_headcount)
		VALUES (:kind, :max_headcount)
		ON CONFLICT(kind) DO NOTHING
	`, limit)
	if err != nil {
		return false, fmt.Errorf("failed to insert group limit: %w", err)
	}
	return added, nil
}

func (s *BaseStore) GetLabRules(lab string) (*models.LabRules, error) {
	var rules models.LabRules
	err := s.DB.Get(&rules, s.q(`SELECT lab, body FROM lab_rules WHERE lab = ?`), lab)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lab rules: %w", err)
	}
	return &rules, nil
}

func (s *BaseStore) SetLabRules(rules models.LabRules) error {
	_, err := s.DB.NamedExec(`
		INSERT INTO lab_rules (lab, body)
		VALUES (:lab, :body)
		ON CONFLICT(lab) DO UPDATE SET
		body = excluded.body
	`, rules)
	if err != nil {
		return fmt.Errorf("failed to set lab rules: %w", err)
	}
	return nil
}

func (s *BaseStore) InsertLabRules(rules models.LabRules) (bool, error) {
	added, err := s.insertIfAbsent(`
		INSERT INTO lab_rules (lab, body)
		VALUES (:lab, :body)
		ON CONFLICT(lab) DO NOTHING
	`, rules)
	if err != nil {
		return false, fmt.Errorf("failed to insert lab rules: %w", err)
	}
	return added, nil
}

func (s *BaseStore) ListBlocks(day, lab string) ([]models.ScheduleBlock, error) {
	return s.listBlocks(s.DB, day, lab)
}

func (s *BaseStore) listBlocks(q sqlx.Queryer, day, lab string) ([]models.ScheduleBlock, error) {
	query := `SELECT id, day, slot, lab, reason FROM schedule_blocks WHERE day = ?`
	args := []interface{}{day}
	if lab != "" {
		query += ` AND lab = ?`
		args = append(args, lab)
	}
	query += ` ORDER BY lab, slot`

	var blocks []models.ScheduleBlock
	if err := sqlx.Select(q, &blocks, s.q(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list blocks: %w", err)
	}
	return blocks, nil
}

// BlockSlots stores the blocks and deletes every reservation they displace,
// all in one transaction. The displaced rows are returned.
func (s *BaseStore) BlockSlots(blocks []models.ScheduleBlock) ([]models.Reservation, error) {
	tx, err := s.DB.Beginx()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var displaced []models.Reservation
	for _, b := range blocks {
		if s.LockDay != nil {
			if err := s.LockDay(tx, b.Day, b.Lab); err != nil {
				return nil, err
			}
		}

		var existing int
		err := tx.Get(&existing, s.q(`
			SELECT COUNT(*) FROM schedule_blocks
			WHERE day = ? AND slot = ? AND lab = ?
		`), b.Day, b.Slot, b.Lab)
		if err != nil {
			return nil, fmt.Errorf("failed to check existing blocks: %w", err)
		}
		if existing > 0 {
			return nil, fmt.Errorf("%w: %s on %s at %s", booking.ErrAlreadyBlocked, b.Lab, b.Day, b.Slot)
		}

		if _, err := tx.NamedExec(`
			INSERT INTO schedule_blocks (day, slot, lab, reason)
			VALUES (:day, :slot, :lab, :reason)
		`, b); err != nil {
			return nil, fmt.Errorf("failed to create block: %w", err)
		}

		var affected []models.Reservation
		if err := tx.Select(&affected, s.q(reservationColumns+`
			WHERE day = ? AND lab = ? AND slot = ?
			ORDER BY email
		`), b.Day, b.Lab, b.Slot); err != nil {
			return nil, fmt.Errorf("failed to find displaced reservations: %w", err)
		}
		if len(affected) == 0 {
			continue
		}
		if _, err := tx.Exec(s.q(`
			DELETE FROM reservations WHERE day = ? AND lab = ? AND slot = ?
		`), b.Day, b.Lab, b.Slot); err != nil {
			return nil, fmt.Errorf("failed to delete displaced reservations: %w", err)
		}
		displaced = append(displaced, affected...)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit blocks: %w", err)
	}
	return displaced, nil
}

// ImportBlocks inserts blocks, skipping ones that already exist.
func (s *BaseStore) ImportBlocks(blocks []models.ScheduleBlock) (int64, error) {
	var inserted int64
	for _, b := range blocks {
		res, err := s.DB.NamedExec(`
			INSERT INTO schedule_blocks (day, slot, lab, reason)
			VALUES (:day, :slot, :lab, :reason)
			ON CONFLICT(day, slot, lab) DO NOTHING
		`, b)
		if err != nil {
			return inserted, fmt.Errorf("failed to import block: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return inserted, err
		}
		inserted += n
	}
	return inserted, nil
}

const reservationColumns = `
	SELECT id, day, slot, lab, email, first_name, last_name, student_code,
		purpose, kind, group_name, headcount, confirmed, created_at
	FROM reservations`

func (s *BaseStore) GetDaySnapshot(day, lab string) (*models.DaySnapshot, error) {
	return s.loadSnapshot(s.DB, day, lab)
}

func (s *BaseStore) loadSnapshot(q sqlx.Queryer, day, lab string) (*models.DaySnapshot, error) {
	snap := &models.DaySnapshot{Day: day, Lab: lab}

	query := reservationColumns + ` WHERE day = ?`
	args := []interface{}{day}
	if lab != "" {
		query += ` AND lab = ?`
		args = append(args, lab)
	}
	query += ` ORDER BY slot, id`

	if err := sqlx.Select(q, &snap.Reservations, s.q(query), args...); err != nil {
		return nil, fmt.Errorf("failed to load reservations for %s: %w", day, err)
	}

	blocks, err := s.listBlocks(q, day, lab)
	if err != nil {
		return nil, err
	}
	snap.Blocks = blocks

	return snap, nil
}

// BookReservations locks the lab's day, hands the current snapshot to check
// and inserts rows only if check passes. Either all rows are written or none.
func (s *BaseStore) BookReservations(day, lab string, rows []models.Reservation, check func(*models.DaySnapshot) error) error {
	tx, err := s.DB.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if s.LockDay != nil {
		if err := s.LockDay(tx, day, lab); err != nil {
			return err
		}
	}

	snap, err := s.loadSnapshot(tx, day, lab)
	if err != nil {
		return err
	}
	if check != nil {
		if err := check(snap); err != nil {
			return err
		}
	}

	for i := range rows {
		if _, err := tx.NamedExec(`
			INSERT INTO reservations (day, slot, lab, email, first_name, last_name, student_code,
				purpose, kind, group_name, headcount, confirmed, created_at)
			VALUES (:day, :slot, :lab, :email, :first_name, :last_name, :student_code,
				:purpose, :kind, :group_name, :headcount, :confirmed, :created_at)
		`, rows[i]); err != nil {
			return fmt.Errorf("failed to create reservation: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reservations: %w", err)
	}
	return nil
}

func (s *BaseStore) ListReservations(filter models.ReservationFilter) ([]models.Reservation, error) {
	var conds []string
	var args []interface{}
	if filter.Day != "" {
		conds = append(conds, "day = ?")
		args = append(args, filter.Day)
	}
	if filter.Lab != "" {
		conds = append(conds, "lab = ?")
		args = append(args, filter.Lab)
	}
	if filter.Email != "" {
		conds = append(conds, "email = ?")
		args = append(args, filter.Email)
	}

	query := reservationColumns
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY day, slot, lab, email"

	var reservations []models.Reservation
	if err := s.DB.Select(&reservations, s.q(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	return reservations, nil
}

func (s *BaseStore) ListReservationDays(from string) ([]string, error) {
	var days []string
	err := s.DB.Select(&days, s.q(`
		SELECT DISTINCT day FROM reservations
		WHERE day >= ?
		ORDER BY day
	`), from)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservation days: %w", err)
	}
	return days, nil
}

func (s *BaseStore) DeleteReservation(key models.ReservationKey) (int64, error) {
	res, err := s.DB.Exec(s.q(`
		DELETE FROM reservations
		WHERE day = ? AND lab = ? AND slot = ? AND email = ?
	`), key.Day, key.Lab, key.Slot, key.Email)
	if err != nil {
		return 0, fmt.Errorf("failed to delete reservation: %w", err)
	}
	return res.RowsAffected()
}

func (s *BaseStore) ConfirmReservation(key models.ReservationKey) (int64, error) {
	res, err := s.DB.Exec(s.q(`
		UPDATE reservations SET confirmed = ?
		WHERE day = ? AND lab = ? AND slot = ? AND email = ?
	`), true, key.Day, key.Lab, key.Slot, key.Email)
	if err != nil {
		return 0, fmt.Errorf("failed to confirm reservation: %w", err)
	}
	return res.RowsAffected()
}

func (s *BaseStore) CreateComment(comment *models.Comment) error {
	_, err := s.DB.NamedExec(`
		INSERT INTO comments (name, email, body, created_at)
		VALUES (:name, :email, :body, :created_at)
	`, comment)
	if err != nil {
		return fmt.Errorf("failed to create comment: %w", err)
	}
	return nil
}

// CommentExists matches on email and body, and on created_at unless it is 0.
func (s *BaseStore) CommentExists(email, body string, createdAt int64) (bool, error) {
	query := `SELECT COUNT(*) FROM comments WHERE email = ? AND body = ?`
	args := []interface{}{email, body}
	if createdAt != 0 {
		query += ` AND created_at = ?`
		args = append(args, createdAt)
	}

	var n int
	if err := s.DB.Get(&n, s.q(query), args...); err != nil {
		return false, fmt.Errorf("failed to look up comment: %w", err)
	}
	return n > 0, nil
}

func (s *BaseStore) ListRecentComments(limit int) ([]models.Comment, error) {
	var comments []models.Comment
	err := s.DB.Select(&comments, s.q(`
		SELECT id, name, email, body, created_at
		FROM comments
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	return comments, nil
}

func (s *BaseStore) FetchReservationStats(topUsers int) (*models.ReservationStats, error) {
	stats := &models.ReservationStats{}

	if err := s.DB.Get(&stats.Total, `SELECT COUNT(*) FROM reservations`); err != nil {
		return nil, fmt.Errorf("failed to count reservations: %w", err)
	}

	groupings := []struct {
		dest  *[]models.CountRow
		query string
	}{
		{&stats.ByLab, `SELECT lab AS name, COUNT(*) AS total FROM reservations GROUP BY lab ORDER BY lab`},
		{&stats.ByDay, `SELECT day AS name, COUNT(*) AS total FROM reservations GROUP BY day ORDER BY day`},
		{&stats.BySlot, `SELECT slot AS name, COUNT(*) AS total FROM reservations GROUP BY slot ORDER BY slot`},
	}
	for _, g := range groupings {
		if err := s.DB.Select(g.dest, g.query); err != nil {
			return nil, fmt.Errorf("failed to fetch reservation stats: %w", err)
		}
	}

	err := s.DB.Select(&stats.TopUsers, s.q(`
		SELECT email AS name, COUNT(*) AS total
		FROM reservations
		GROUP BY email
		ORDER BY total DESC, email
		LIMIT ?
	`), topUsers)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch top users: %w", err)
	}

	return stats, nil
}
