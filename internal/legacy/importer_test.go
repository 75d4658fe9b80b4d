package legacy

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shrimpsizemoose/labsync/internal/models"
	"github.com/shrimpsizemoose/labsync/internal/store/sqlite"
)

func fakeHash(password string) (string, error) {
	return "hashed:" + password, nil
}

// writeLegacyDir lays out a small legacy directory the way the old portal
// left it on disk.
func writeLegacyDir(t *testing.T) string {
	dir := t.TempDir()

	require.NoError(t, WriteSheet(filepath.Join(dir, UsersFile), "",
		[]string{"Nombre", "Apellido", "Correo", "Rol", "Código", "Contraseña", "C402_access", "Temp_access_expiry"},
		[][]interface{}{
			{"Ana", "Diaz", "ana@alum.up.edu.pe", "alumno", "20201234", "secret1", 1, "2024-06-01"},
			{"Rosa", "Quispe", "rosa@up.edu.pe", "c402_admin", "00000000", "rosa123", 0, ""},
			{"Ghost", "User", "ghost@up.edu.pe", "superuser", "0", "x", 0, ""},
		}))

	require.NoError(t, WriteSheet(filepath.Join(dir, BlocksFile), "",
		[]string{"Día", "Hora", "Laboratorio", "Estado", "Motivo"},
		[][]interface{}{
			{"2024-05-11", "14:00", "C402", 1, "mantenimiento"},
			{"2024-05-11", "14:30", "C402", 1, "mantenimiento"},
			{"2024-05-11", "14:30", "C402", 1, "duplicado"},
			{"2024-05-11", "15:00", "C402", 0, "liberado"},
		}))

	require.NoError(t, WriteSheet(filepath.Join(dir, GroupLimitsFile), "",
		[]string{"Tipo", "Límite"},
		[][]interface{}{{"Grupal", 6}}))

	require.NoError(t, WriteSheet(filepath.Join(dir, CommentsFile), "",
		[]string{"Nombre", "Correo", "Comentario", "Fecha"},
		[][]interface{}{{"Ana", "ana@alum.up.edu.pe", "Más enchufes", "2024-05-01 10:30:00"}}))

	require.NoError(t, WriteSheet(filepath.Join(dir, DayFile("2024-05-11")), "",
		[]string{"Nombre", "Apellido", "Código", "Correo", "Laboratorio", "Hora", "Propósito", "Tipo", "Grupo", "Cantidad_alumnos"},
		[][]interface{}{
			{"Ana", "Diaz", "20201234", "ana@alum.up.edu.pe", "B501", "09:00", "estudio", "", "", ""},
			{"Ana", "Diaz", "20201234", "ana@alum.up.edu.pe", "B501", "09:00", "estudio", "", "", ""},
			{"Ana", "Diaz", "20201234", "ana@alum.up.edu.pe", "C402", "10:00", "robot", "Grupal", "Robótica", 4},
			{"Luis", "Paz", "20205678", "luis@alum.up.edu.pe", "B501", "9:30", "tesis", "Individual", "", 3},
			{"", "", "", "", "B501", "10:00", "", "", "", ""},
		}))

	// day files written before group bookings existed have fewer columns
	require.NoError(t, WriteSheet(filepath.Join(dir, DayFile("2024-05-12")), "",
		[]string{"Nombre", "Apellido", "Correo", "Laboratorio", "Hora"},
		[][]interface{}{{"Luis", "Paz", "luis@alum.up.edu.pe", "B501", "08:00"}}))

	require.NoError(t, os.WriteFile(filepath.Join(dir, CapacitiesFile), []byte(`{"B501": 18, "C402": 22}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, RulesFile), []byte("Reglas generales\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, RulesFileFor("C402")), []byte("Solo con bata"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.xlsx.bak"), []byte("junk"), 0o644))

	return dir
}

func setupImporter(t *testing.T, dir string) (*Importer, *sqlite.SQLiteStore, func()) {
	s, err := sqlite.NewSQLiteStore(":memory:")
	require.NoError(t, err)

	im := &Importer{
		Store:    s,
		Dir:      dir,
		Labs:     []string{"B501", "C402"},
		Hash:     fakeHash,
		Location: time.UTC,
	}
	return im, s, func() { s.Close() }
}

func TestImport(t *testing.T) {
	dir := writeLegacyDir(t)
	im, s, cleanup := setupImporter(t, dir)
	defer cleanup()

	report, err := im.Import()
	require.NoError(t, err)

	assert.Equal(t, 2, report.Users)
	assert.Equal(t, 2, report.Capacities)
	assert.Equal(t, 1, report.GroupLimits)
	assert.Equal(t, 2, report.Rules)
	assert.Equal(t, int64(2), report.Blocks)
	assert.Equal(t, 4, report.Reservations)
	assert.Equal(t, 1, report.Comments)

	ana, err := s.GetUser("ana@alum.up.edu.pe")
	require.NoError(t, err)
	require.NotNil(t, ana)
	assert.Equal(t, models.RoleStudent, ana.Role)
	assert.Equal(t, "hashed:secret1", ana.PasswordHash)
	assert.True(t, ana.LabAccess)
	require.NotNil(t, ana.AccessExpiry)
	assert.Equal(t, "2024-06-01", *ana.AccessExpiry)

	rosa, err := s.GetUser("rosa@up.edu.pe")
	require.NoError(t, err)
	assert.Equal(t, models.RoleLabAdmin, rosa.Role)
	assert.True(t, rosa.LabAccess)

	ghost, err := s.GetUser("ghost@up.edu.pe")
	require.NoError(t, err)
	assert.Nil(t, ghost)

	group, err := s.ListReservations(models.ReservationFilter{Day: "2024-05-11", Lab: "C402"})
	require.NoError(t, err)
	require.Len(t, group, 1)
	assert.Equal(t, models.KindGroup, group[0].Kind)
	assert.Equal(t, 4, group[0].Headcount)
	assert.Equal(t, "Robótica", group[0].GroupName)

	b501, err := s.ListReservations(models.ReservationFilter{Day: "2024-05-11", Lab: "B501"})
	require.NoError(t, err)
	require.Len(t, b501, 2)
	assert.Equal(t, "09:30", b501[1].Slot)
	assert.Equal(t, 1, b501[1].Headcount, "individual rows take one seat")

	old, err := s.ListReservations(models.ReservationFilter{Day: "2024-05-12"})
	require.NoError(t, err)
	require.Len(t, old, 1)
	assert.Equal(t, 1, old[0].Headcount)

	rules, err := s.GetLabRules("")
	require.NoError(t, err)
	assert.Equal(t, "Reglas generales", rules.Body)

	limit, err := s.GetGroupLimit(models.KindGroup)
	require.NoError(t, err)
	assert.Equal(t, 6, limit.MaxHeadcount)

	comments, err := s.ListRecentComments(10)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC).Unix(), comments[0].CreatedAt)
}

func TestImportTwiceAddsNothing(t *testing.T) {
	dir := writeLegacyDir(t)
	im, s, cleanup := setupImporter(t, dir)
	defer cleanup()

	_, err := im.Import()
	require.NoError(t, err)

	// admin changes made between runs
	require.NoError(t, s.SetLabCapacity(models.LabCapacity{Lab: "B501", Capacity: 30}))
	require.NoError(t, s.SetGroupLimit(models.GroupLimit{Kind: models.KindGroup, MaxHeadcount: 8}))
	require.NoError(t, s.SetLabRules(models.LabRules{Lab: "C402", Body: "Bata y lentes"}))

	report, err := im.Import()
	require.NoError(t, err)
	assert.Equal(t, &Report{Skipped: report.Skipped}, report)

	all, err := s.ListReservations(models.ReservationFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 4)

	comments, err := s.ListRecentComments(10)
	require.NoError(t, err)
	assert.Len(t, comments, 1)

	capacities, err := s.ListLabCapacities()
	require.NoError(t, err)
	assert.Contains(t, capacities, models.LabCapacity{Lab: "B501", Capacity: 30})
	assert.Contains(t, capacities, models.LabCapacity{Lab: "C402", Capacity: 22})

	limit, err := s.GetGroupLimit(models.KindGroup)
	require.NoError(t, err)
	assert.Equal(t, 8, limit.MaxHeadcount)

	rules, err := s.GetLabRules("C402")
	require.NoError(t, err)
	assert.Equal(t, "Bata y lentes", rules.Body)
}

func TestImportUndatedCommentOnce(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, WriteSheet(filepath.Join(dir, CommentsFile), "",
		[]string{"Nombre", "Correo", "Comentario"},
		[][]interface{}{{"Luis", "luis@alum.up.edu.pe", "Falta un proyector"}}))

	im, s, cleanup := setupImporter(t, dir)
	defer cleanup()

	for i := 0; i < 2; i++ {
		_, err := im.Import()
		require.NoError(t, err)
	}

	comments, err := s.ListRecentComments(10)
	require.NoError(t, err)
	assert.Len(t, comments, 1)
}

func TestImportEmptyDir(t *testing.T) {
	im, _, cleanup := setupImporter(t, t.TempDir())
	defer cleanup()

	report, err := im.Import()
	require.NoError(t, err)
	assert.Equal(t, &Report{}, report)
}

func TestNormalizers(t *testing.T) {
	day, err := normalizeDate("2024-05-11 00:00:00")
	require.NoError(t, err)
	assert.Equal(t, "2024-05-11", day)

	day, err = normalizeDate("45423")
	require.NoError(t, err)
	assert.Equal(t, "2024-05-11", day)

	_, err = normalizeDate("someday")
	assert.Error(t, err)

	slot, err := normalizeSlot("9:30")
	require.NoError(t, err)
	assert.Equal(t, "09:30", slot)

	slot, err = normalizeSlot("14:00:00")
	require.NoError(t, err)
	assert.Equal(t, "14:00", slot)

	assert.Equal(t, 1, parseHeadcount(""))
	assert.Equal(t, 4, parseHeadcount("4"))
	assert.Equal(t, "Grupal", KindLabel(models.KindGroup))
}
