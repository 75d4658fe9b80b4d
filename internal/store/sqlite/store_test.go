// internal/store/sqlite/store_test.go
package sqlite

import (
	"errors"
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shrimpsizemoose/labsync/internal/booking"
	"github.com/shrimpsizemoose/labsync/internal/models"
)

// setupTestDB creates an in-memory SQLite database with the embedded schema
func setupTestDB(t *testing.T) (*SQLiteStore, func()) {
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err, "Failed to create store")

	cleanup := func() {
		err := s.Close()
		require.NoError(t, err, "Failed to close database")
	}

	return s, cleanup
}

type testData struct {
	store *SQLiteStore
	now   time.Time
}

func setupTestData(t *testing.T) (*testData, func()) {
	s, cleanup := setupTestDB(t)
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	err := s.SeedLabCapacities([]models.LabCapacity{
		{Lab: "B501", Capacity: 15},
		{Lab: "C402", Capacity: 22},
	})
	require.NoError(t, err, "Failed to seed capacities")

	return &testData{
		store: s,
		now:   now,
	}, cleanup
}

func reservation(day, lab, slot, email string) models.Reservation {
	return models.Reservation{
		Day:       day,
		Slot:      slot,
		Lab:       lab,
		Email:     email,
		FirstName: "Test",
		LastName:  "Student",
		Headcount: 1,
		CreatedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC).Unix(),
	}
}

func TestMain(m *testing.M) {
	log.Println("Starting SQLite store tests...")
	code := m.Run()
	log.Println("Finished SQLite store tests")
	os.Exit(code)
}

func TestUserOperations(t *testing.T) {
	td, cleanup := setupTestData(t)
	defer cleanup()

	user := models.User{
		Email:        "ana@alum.up.edu.pe",
		FirstName:    "Ana",
		LastName:     "Diaz",
		Role:         models.RoleStudent,
		StudentCode:  "20201234",
		PasswordHash: "hash",
	}

	t.Run("create user", func(t *testing.T) {
		require.NoError(t, td.store.CreateUser(&user))
	})

	t.Run("duplicate email fails", func(t *testing.T) {
		assert.Error(t, td.store.CreateUser(&user))
	})

	t.Run("get user", func(t *testing.T) {
		got, err := td.store.GetUser(user.Email)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, user.FirstName, got.FirstName)
		assert.Equal(t, user.Role, got.Role)
		assert.False(t, got.LabAccess)
		assert.Nil(t, got.AccessExpiry)
	})

	t.Run("get missing user", func(t *testing.T) {
		got, err := td.store.GetUser("nobody@alum.up.edu.pe")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("set temporary access", func(t *testing.T) {
		expiry := "2024-05-17"
		n, err := td.store.SetLabAccess(user.Email, true, &expiry)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		got, err := td.store.GetUser(user.Email)
		require.NoError(t, err)
		assert.True(t, got.LabAccess)
		require.NotNil(t, got.AccessExpiry)
		assert.Equal(t, expiry, *got.AccessExpiry)
	})

	t.Run("revoke access", func(t *testing.T) {
		_, err := td.store.SetLabAccess(user.Email, false, nil)
		require.NoError(t, err)

		got, err := td.store.GetUser(user.Email)
		require.NoError(t, err)
		assert.False(t, got.LabAccess)
		assert.Nil(t, got.AccessExpiry)
	})

	t.Run("list by role", func(t *testing.T) {
		admin := models.User{Email: "boss@up.edu.pe", Role: models.RoleAdmin, PasswordHash: "x"}
		require.NoError(t, td.store.CreateUser(&admin))

		students, err := td.store.ListUsers(models.RoleStudent)
		require.NoError(t, err)
		require.Len(t, students, 1)
		assert.Equal(t, user.Email, students[0].Email)

		all, err := td.store.ListUsers("")
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})
}

func TestLabSettings(t *testing.T) {
	td, cleanup := setupTestData(t)
	defer cleanup()

	t.Run("seeding keeps existing capacity", func(t *testing.T) {
		require.NoError(t, td.store.SetLabCapacity(models.LabCapacity{Lab: "B501", Capacity: 20}))
		require.NoError(t, td.store.SeedLabCapacities([]models.LabCapacity{{Lab: "B501", Capacity: 15}}))

		caps, err := td.store.ListLabCapacities()
		require.NoError(t, err)
		assert.Equal(t, []models.LabCapacity{{Lab: "B501", Capacity: 20}, {Lab: "C402", Capacity: 22}}, caps)
	})

	t.Run("group limits upsert", func(t *testing.T) {
		missing, err := td.store.GetGroupLimit(models.KindGroup)
		require.NoError(t, err)
		assert.Nil(t, missing)

		require.NoError(t, td.store.SetGroupLimit(models.GroupLimit{Kind: models.KindGroup, MaxHeadcount: 5}))
		require.NoError(t, td.store.SetGroupLimit(models.GroupLimit{Kind: models.KindGroup, MaxHeadcount: 8}))

		got, err := td.store.GetGroupLimit(models.KindGroup)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, 8, got.MaxHeadcount)

		all, err := td.store.ListGroupLimits()
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("rules", func(t *testing.T) {
		got, err := td.store.GetLabRules("C402")
		require.NoError(t, err)
		assert.Nil(t, got)

		require.NoError(t, td.store.SetLabRules(models.LabRules{Lab: "C402", Body: "no food"}))
		require.NoError(t, td.store.SetLabRules(models.LabRules{Lab: "C402", Body: "no food, no drinks"}))

		got, err = td.store.GetLabRules("C402")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "no food, no drinks", got.Body)
	})
}

func TestBookReservations(t *testing.T) {
	td, cleanup := setupTestData(t)
	defer cleanup()

	day := "2024-05-10"
	rows := []models.Reservation{
		reservation(day, "B501", "09:00", "ana@alum.up.edu.pe"),
		reservation(day, "B501", "09:30", "ana@alum.up.edu.pe"),
	}

	t.Run("check sees current snapshot", func(t *testing.T) {
		var seen *models.DaySnapshot
		err := td.store.BookReservations(day, "B501", rows, func(snap *models.DaySnapshot) error {
			seen = snap
			return nil
		})
		require.NoError(t, err)
		require.NotNil(t, seen)
		assert.Empty(t, seen.Reservations)

		snap, err := td.store.GetDaySnapshot(day, "B501")
		require.NoError(t, err)
		assert.Len(t, snap.Reservations, 2)
	})

	t.Run("failed check writes nothing", func(t *testing.T) {
		errRejected := errors.New("rejected")
		more := []models.Reservation{reservation(day, "B501", "10:00", "luis@alum.up.edu.pe")}
		err := td.store.BookReservations(day, "B501", more, func(*models.DaySnapshot) error {
			return errRejected
		})
		assert.ErrorIs(t, err, errRejected)

		got, err := td.store.ListReservations(models.ReservationFilter{Email: "luis@alum.up.edu.pe"})
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("partial conflict rolls back every row", func(t *testing.T) {
		clash := []models.Reservation{
			reservation(day, "B501", "10:00", "ana@alum.up.edu.pe"),
			reservation(day, "B501", "09:00", "ana@alum.up.edu.pe"),
		}
		err := td.store.BookReservations(day, "B501", clash, nil)
		assert.Error(t, err)

		got, err := td.store.ListReservations(models.ReservationFilter{Day: day, Email: "ana@alum.up.edu.pe"})
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("list days", func(t *testing.T) {
		require.NoError(t, td.store.BookReservations("2024-05-12", "C402",
			[]models.Reservation{reservation("2024-05-12", "C402", "08:00", "ana@alum.up.edu.pe")}, nil))

		days, err := td.store.ListReservationDays("2024-05-11")
		require.NoError(t, err)
		assert.Equal(t, []string{"2024-05-12"}, days)
	})
}

func TestDeleteReservationRemovesOnlyMatchingRow(t *testing.T) {
	td, cleanup := setupTestData(t)
	defer cleanup()

	day := "2024-05-10"
	rows := []models.Reservation{
		reservation(day, "B501", "09:00", "ana@alum.up.edu.pe"),
		reservation(day, "B501", "09:30", "ana@alum.up.edu.pe"),
		reservation(day, "B501", "09:00", "luis@alum.up.edu.pe"),
		reservation(day, "C402", "09:00", "ana@alum.up.edu.pe"),
		reservation("2024-05-11", "B501", "09:00", "ana@alum.up.edu.pe"),
	}
	require.NoError(t, td.store.BookReservations(day, "", rows, nil))

	n, err := td.store.DeleteReservation(models.ReservationKey{Day: day, Lab: "B501", Slot: "09:00", Email: "ana@alum.up.edu.pe"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	left, err := td.store.ListReservations(models.ReservationFilter{})
	require.NoError(t, err)
	require.Len(t, left, 4)
	for _, r := range left {
		isDeleted := r.Day == day && r.Lab == "B501" && r.Slot == "09:00" && r.Email == "ana@alum.up.edu.pe"
		assert.False(t, isDeleted)
	}

	n, err = td.store.DeleteReservation(models.ReservationKey{Day: day, Lab: "B501", Slot: "09:00", Email: "ana@alum.up.edu.pe"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestConfirmReservation(t *testing.T) {
	td, cleanup := setupTestData(t)
	defer cleanup()

	day := "2024-05-10"
	require.NoError(t, td.store.BookReservations(day, "C402", []models.Reservation{
		reservation(day, "C402", "09:00", "ana@alum.up.edu.pe"),
		reservation(day, "C402", "09:30", "ana@alum.up.edu.pe"),
	}, nil))

	n, err := td.store.ConfirmReservation(models.ReservationKey{Day: day, Lab: "C402", Slot: "09:00", Email: "ana@alum.up.edu.pe"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := td.store.ListReservations(models.ReservationFilter{Lab: "C402"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].Confirmed)
	assert.False(t, got[1].Confirmed)
}

func TestBlockSlots(t *testing.T) {
	td, cleanup := setupTestData(t)
	defer cleanup()

	day := "2024-05-10"
	require.NoError(t, td.store.BookReservations(day, "", []models.Reservation{
		reservation(day, "B501", "09:00", "ana@alum.up.edu.pe"),
		reservation(day, "B501", "10:00", "ana@alum.up.edu.pe"),
		reservation(day, "C402", "09:00", "luis@alum.up.edu.pe"),
	}, nil))

	blocks := []models.ScheduleBlock{
		{Day: day, Slot: "09:00", Lab: "B501", Reason: "maintenance"},
		{Day: day, Slot: "09:30", Lab: "B501", Reason: "maintenance"},
	}

	t.Run("block displaces overlapping reservations", func(t *testing.T) {
		displaced, err := td.store.BlockSlots(blocks)
		require.NoError(t, err)
		require.Len(t, displaced, 1)
		assert.Equal(t, "09:00", displaced[0].Slot)
		assert.Equal(t, "B501", displaced[0].Lab)

		snap, err := td.store.GetDaySnapshot(day, "B501")
		require.NoError(t, err)
		require.Len(t, snap.Reservations, 1)
		assert.Equal(t, "10:00", snap.Reservations[0].Slot)
		assert.Len(t, snap.Blocks, 2)

		other, err := td.store.GetDaySnapshot(day, "C402")
		require.NoError(t, err)
		assert.Len(t, other.Reservations, 1)
		assert.Empty(t, other.Blocks)
	})

	t.Run("blocking again is rejected", func(t *testing.T) {
		_, err := td.store.BlockSlots([]models.ScheduleBlock{
			{Day: day, Slot: "10:00", Lab: "B501"},
			{Day: day, Slot: "09:30", Lab: "B501"},
		})
		assert.ErrorIs(t, err, booking.ErrAlreadyBlocked)

		got, err := td.store.ListBlocks(day, "B501")
		require.NoError(t, err)
		assert.Len(t, got, 2)

		snap, err := td.store.GetDaySnapshot(day, "B501")
		require.NoError(t, err)
		assert.Len(t, snap.Reservations, 1, "rolled back block must not delete reservations")
	})

	t.Run("import skips duplicates", func(t *testing.T) {
		n, err := td.store.ImportBlocks(append(blocks, models.ScheduleBlock{Day: day, Slot: "11:00", Lab: "C402"}))
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})
}

func TestInsertIfAbsentKeepsExisting(t *testing.T) {
	td, cleanup := setupTestData(t)
	defer cleanup()

	added, err := td.store.InsertLabCapacity(models.LabCapacity{Lab: "B501", Capacity: 30})
	require.NoError(t, err)
	assert.False(t, added)
	added, err = td.store.InsertLabCapacity(models.LabCapacity{Lab: "A101", Capacity: 10})
	require.NoError(t, err)
	assert.True(t, added)

	caps, err := td.store.ListLabCapacities()
	require.NoError(t, err)
	assert.Equal(t, []models.LabCapacity{{Lab: "A101", Capacity: 10}, {Lab: "B501", Capacity: 15}, {Lab: "C402", Capacity: 22}}, caps)

	added, err = td.store.InsertGroupLimit(models.GroupLimit{Kind: models.KindGroup, MaxHeadcount: 5})
	require.NoError(t, err)
	assert.True(t, added)
	added, err = td.store.InsertGroupLimit(models.GroupLimit{Kind: models.KindGroup, MaxHeadcount: 9})
	require.NoError(t, err)
	assert.False(t, added)
	limit, err := td.store.GetGroupLimit(models.KindGroup)
	require.NoError(t, err)
	assert.Equal(t, 5, limit.MaxHeadcount)

	added, err = td.store.InsertLabRules(models.LabRules{Lab: "C402", Body: "no food"})
	require.NoError(t, err)
	assert.True(t, added)
	added, err = td.store.InsertLabRules(models.LabRules{Lab: "C402", Body: "other"})
	require.NoError(t, err)
	assert.False(t, added)
	rules, err := td.store.GetLabRules("C402")
	require.NoError(t, err)
	assert.Equal(t, "no food", rules.Body)
}

func TestCommentExists(t *testing.T) {
	td, cleanup := setupTestData(t)
	defer cleanup()

	at := td.now.Unix()
	require.NoError(t, td.store.CreateComment(&models.Comment{
		Name: "Ana", Email: "ana@alum.up.edu.pe", Body: "More chairs", CreatedAt: at,
	}))

	tests := []struct {
		name      string
		email     string
		body      string
		createdAt int64
		want      bool
	}{
		{"exact match", "ana@alum.up.edu.pe", "More chairs", at, true},
		{"any time", "ana@alum.up.edu.pe", "More chairs", 0, true},
		{"other time", "ana@alum.up.edu.pe", "More chairs", at + 60, false},
		{"other body", "ana@alum.up.edu.pe", "Less chairs", 0, false},
		{"other email", "luis@alum.up.edu.pe", "More chairs", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := td.store.CommentExists(tt.email, tt.body, tt.createdAt)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCommentsAndStats(t *testing.T) {
	td, cleanup := setupTestData(t)
	defer cleanup()

	for i, body := range []string{"first", "second", "third"} {
		require.NoError(t, td.store.CreateComment(&models.Comment{
			Name:      "Ana",
			Email:     "ana@alum.up.edu.pe",
			Body:      body,
			CreatedAt: td.now.Add(time.Duration(i) * time.Minute).Unix(),
		}))
	}

	comments, err := td.store.ListRecentComments(2)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "third", comments[0].Body)
	assert.Equal(t, "second", comments[1].Body)

	require.NoError(t, td.store.BookReservations("2024-05-10", "", []models.Reservation{
		reservation("2024-05-10", "B501", "09:00", "ana@alum.up.edu.pe"),
		reservation("2024-05-10", "B501", "09:30", "ana@alum.up.edu.pe"),
		reservation("2024-05-11", "C402", "09:00", "luis@alum.up.edu.pe"),
	}, nil))

	stats, err := td.store.FetchReservationStats(1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Total)
	assert.Equal(t, []models.CountRow{{Name: "B501", Total: 2}, {Name: "C402", Total: 1}}, stats.ByLab)
	assert.Equal(t, []models.CountRow{{Name: "2024-05-10", Total: 2}, {Name: "2024-05-11", Total: 1}}, stats.ByDay)
	assert.Equal(t, []models.CountRow{{Name: "09:00", Total: 2}, {Name: "09:30", Total: 1}}, stats.BySlot)
	assert.Equal(t, []models.CountRow{{Name: "ana@alum.up.edu.pe", Total: 2}}, stats.TopUsers)
}

func TestTranslateToSQLite(t *testing.T) {
	got := translateToSQLite("id BIGSERIAL PRIMARY KEY, n BIGINT, f BOOLEAN DEFAULT FALSE, t BOOLEAN DEFAULT TRUE")
	assert.Equal(t, "id INTEGER PRIMARY KEY AUTOINCREMENT, n INTEGER, f BOOLEAN DEFAULT 0, t BOOLEAN DEFAULT 1", got)
}
