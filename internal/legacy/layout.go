// Package legacy reads and writes the spreadsheet directory layout the portal
// used before it had a database: one xlsx file per reservation day plus a
// handful of side files for users, blocks, limits and comments.
package legacy

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/shrimpsizemoose/labsync/internal/models"
)

const (
	UsersFile       = "user_data.xlsx"
	BlocksFile      = "blocked_schedules.xlsx"
	GroupLimitsFile = "group_limits.xlsx"
	CommentsFile    = "comments.xlsx"
	CapacitiesFile  = "lab_capacities.json"
	RulesFile       = "lineamientos.txt"
)

// Day file columns.
const (
	colFirstName   = "Nombre"
	colLastName    = "Apellido"
	colCode        = "Código"
	colEmail       = "Correo"
	colLab         = "Laboratorio"
	colSlot        = "Hora"
	colPurpose     = "Propósito"
	colKind        = "Tipo"
	colGroup       = "Grupo"
	colHeadcount   = "Cantidad_alumnos"
	colConfirmed   = "Confirmado"
	colRole        = "Rol"
	colPassword    = "Contraseña"
	colAccess      = "C402_access"
	colExpiry      = "Temp_access_expiry"
	colDay         = "Día"
	colState       = "Estado"
	colReason      = "Motivo"
	colLimit       = "Límite"
	colComment     = "Comentario"
	colCommentDate = "Fecha"
)

var DayColumns = []string{
	colFirstName, colLastName, colCode, colEmail, colLab, colSlot,
	colPurpose, colKind, colGroup, colHeadcount, colConfirmed,
}

const commentTimeLayout = "2006-01-02 15:04:05"

func RulesFileFor(lab string) string {
	return fmt.Sprintf("lineamientos_%s.txt", lab)
}

func DayFile(day string) string {
	return day + ".xlsx"
}

// KindLabel is the label the day files use for a reservation type.
func KindLabel(kind string) string {
	switch kind {
	case models.KindGroup:
		return "Grupal"
	case models.KindIndividual:
		return "Individual"
	}
	return ""
}

func parseKind(label string) string {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "grupal", "group":
		return models.KindGroup
	case "individual":
		return models.KindIndividual
	}
	return ""
}

func parseRole(label string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "alumno", "student", "":
		return models.RoleStudent, true
	case "admin":
		return models.RoleAdmin, true
	case "c402_admin", "lab_admin":
		return models.RoleLabAdmin, true
	}
	return "", false
}

// DayRow renders a reservation in DayColumns order.
func DayRow(r models.Reservation) []interface{} {
	confirmed := ""
	if r.Confirmed {
		confirmed = "Sí"
	}
	return []interface{}{
		r.FirstName, r.LastName, r.StudentCode, r.Email, r.Lab, r.Slot,
		r.Purpose, KindLabel(r.Kind), r.GroupName, r.Seats(), confirmed,
	}
}

var dateLayouts = []string{
	models.DateLayout,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"01-02-06",
	"1/2/06",
	"1/2/06 15:04",
	"02/01/2006",
}

// normalizeDate turns the date formats found in the legacy files, Excel
// serials included, into YYYY-MM-DD.
func normalizeDate(value string) (string, error) {
	value = strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Format(models.DateLayout), nil
		}
	}
	if serial, err := strconv.ParseFloat(value, 64); err == nil {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err == nil {
			return t.Format(models.DateLayout), nil
		}
	}
	return "", fmt.Errorf("unrecognized date %q", value)
}

func normalizeSlot(value string) (string, error) {
	value = strings.TrimSpace(value)
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Format("15:04"), nil
		}
	}
	return "", fmt.Errorf("unrecognized slot %q", value)
}

func parseFlag(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "sí", "si", "yes":
		return true
	}
	return false
}

func parseHeadcount(value string) int {
	n, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || n < 1 {
		return 1
	}
	return int(n)
}
