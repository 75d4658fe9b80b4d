package legacy

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/labsync/internal/models"
	"github.com/shrimpsizemoose/labsync/internal/store"
)

var dayFileRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}\.xlsx$`)

type Report struct {
	Users        int
	Capacities   int
	GroupLimits  int
	Rules        int
	Blocks       int64
	Reservations int
	Comments     int
	Skipped      int
}

// Importer loads a legacy directory into a store. Rows already present,
// settings changed by an admin included, are left alone, so a second run
// only adds what is new.
type Importer struct {
	Store store.LabStore
	Dir   string
	Labs  []string
	// Hash turns the plaintext legacy passwords into stored hashes.
	Hash func(password string) (string, error)
	// Location is used for comment timestamps.
	Location *time.Location
}

func (im *Importer) path(name string) string {
	return filepath.Join(im.Dir, name)
}

func (im *Importer) Import() (*Report, error) {
	if im.Location == nil {
		im.Location = time.Local
	}
	report := &Report{}

	steps := []struct {
		name string
		run  func(*Report) error
	}{
		{"users", im.importUsers},
		{"capacities", im.importCapacities},
		{"group limits", im.importGroupLimits},
		{"rules", im.importRules},
		{"blocks", im.importBlocks},
		{"reservations", im.importReservations},
		{"comments", im.importComments},
	}
	for _, step := range steps {
		if err := step.run(report); err != nil {
			return report, fmt.Errorf("failed to import %s: %w", step.name, err)
		}
		logger.Debug.Printf("Imported %s from %s", step.name, im.Dir)
	}
	return report, nil
}

func (im *Importer) importUsers(report *Report) error {
	records, err := readSheet(im.path(UsersFile))
	if err != nil {
		return err
	}

	for _, rec := range records {
		email := rec.get(colEmail)
		if email == "" {
			report.Skipped++
			continue
		}
		role, ok := parseRole(rec.get(colRole))
		if !ok {
			logger.Error.Printf("Skipping %s: unknown role %q", email, rec.get(colRole))
			report.Skipped++
			continue
		}

		existing, err := im.Store.GetUser(email)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}

		hash, err := im.Hash(rec.get(colPassword))
		if err != nil {
			return err
		}

		user := &models.User{
			Email:        email,
			FirstName:    rec.get(colFirstName),
			LastName:     rec.get(colLastName),
			Role:         role,
			StudentCode:  rec.get(colCode),
			PasswordHash: hash,
			LabAccess:    parseFlag(rec.get(colAccess)) || role == models.RoleLabAdmin,
		}
		if raw := rec.get(colExpiry); raw != "" {
			if day, err := normalizeDate(raw); err == nil {
				user.AccessExpiry = &day
			}
		}

		if err := im.Store.CreateUser(user); err != nil {
			return err
		}
		report.Users++
	}
	return nil
}

func (im *Importer) importCapacities(report *Report) error {
	data, err := os.ReadFile(im.path(CapacitiesFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	var capacities map[string]int
	if err := json.Unmarshal(data, &capacities); err != nil {
		return fmt.Errorf("invalid %s: %w", CapacitiesFile, err)
	}

	for lab, capacity := range capacities {
		c := models.LabCapacity{Lab: lab, Capacity: capacity}
		if err := c.Validate(); err != nil {
			logger.Error.Printf("Skipping capacity of %s: %v", lab, err)
			report.Skipped++
			continue
		}
		added, err := im.Store.InsertLabCapacity(c)
		if err != nil {
			return err
		}
		if added {
			report.Capacities++
		}
	}
	return nil
}

func (im *Importer) importGroupLimits(report *Report) error {
	records, err := readSheet(im.path(GroupLimitsFile))
	if err != nil {
		return err
	}

	for _, rec := range records {
		kind := parseKind(rec.get(colKind))
		if kind == "" {
			kind = strings.ToLower(rec.get(colKind))
		}
		limit := models.GroupLimit{Kind: kind, MaxHeadcount: parseHeadcount(rec.get(colLimit))}
		if err := limit.Validate(); err != nil {
			report.Skipped++
			continue
		}
		added, err := im.Store.InsertGroupLimit(limit)
		if err != nil {
			return err
		}
		if added {
			report.GroupLimits++
		}
	}
	return nil
}

func (im *Importer) importRules(report *Report) error {
	files := map[string]string{"": RulesFile}
	for _, lab := range im.Labs {
		files[lab] = RulesFileFor(lab)
	}

	for lab, name := range files {
		data, err := os.ReadFile(im.path(name))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return err
		}
		body := strings.TrimSpace(string(data))
		if body == "" {
			continue
		}
		added, err := im.Store.InsertLabRules(models.LabRules{Lab: lab, Body: body})
		if err != nil {
			return err
		}
		if added {
			report.Rules++
		}
	}
	return nil
}

func (im *Importer) importBlocks(report *Report) error {
	records, err := readSheet(im.path(BlocksFile))
	if err != nil {
		return err
	}

	var blocks []models.ScheduleBlock
	for _, rec := range records {
		if state := rec.get(colState); state != "" && !parseFlag(state) {
			continue
		}
		day, err := normalizeDate(rec.get(colDay))
		if err != nil {
			report.Skipped++
			continue
		}
		slot, err := normalizeSlot(rec.get(colSlot))
		if err != nil {
			report.Skipped++
			continue
		}
		blocks = append(blocks, models.ScheduleBlock{
			Day:    day,
			Slot:   slot,
			Lab:    rec.get(colLab),
			Reason: rec.get(colReason),
		})
	}

	n, err := im.Store.ImportBlocks(blocks)
	if err != nil {
		return err
	}
	report.Blocks = n
	return nil
}

func (im *Importer) importReservations(report *Report) error {
	entries, err := os.ReadDir(im.Dir)
	if err != nil {
		return err
	}

	var days []string
	for _, e := range entries {
		if !e.IsDir() && dayFileRe.MatchString(e.Name()) {
			days = append(days, strings.TrimSuffix(e.Name(), ".xlsx"))
		}
	}
	sort.Strings(days)

	for _, day := range days {
		n, skipped, err := im.importDay(day)
		if err != nil {
			return fmt.Errorf("%s: %w", DayFile(day), err)
		}
		report.Reservations += n
		report.Skipped += skipped
	}
	return nil
}

type rowKey struct {
	lab, slot, email string
}

func (im *Importer) importDay(day string) (imported, skipped int, err error) {
	records, err := readSheet(im.path(DayFile(day)))
	if err != nil {
		return 0, 0, err
	}

	byLab := make(map[string][]models.Reservation)
	seen := make(map[rowKey]bool)
	for _, rec := range records {
		slot, err := normalizeSlot(rec.get(colSlot))
		if err != nil || rec.get(colEmail) == "" || rec.get(colLab) == "" {
			skipped++
			continue
		}
		key := rowKey{rec.get(colLab), slot, rec.get(colEmail)}
		if seen[key] {
			skipped++
			continue
		}
		seen[key] = true

		kind := parseKind(rec.get(colKind))
		headcount := parseHeadcount(rec.get(colHeadcount))
		if kind != models.KindGroup {
			headcount = 1
		}

		byLab[key.lab] = append(byLab[key.lab], models.Reservation{
			Day:         day,
			Slot:        slot,
			Lab:         key.lab,
			Email:       key.email,
			FirstName:   rec.get(colFirstName),
			LastName:    rec.get(colLastName),
			StudentCode: rec.get(colCode),
			Purpose:     rec.get(colPurpose),
			Kind:        kind,
			GroupName:   rec.get(colGroup),
			Headcount:   headcount,
			Confirmed:   parseFlag(rec.get(colConfirmed)),
			CreatedAt:   time.Now().Unix(),
		})
	}

	for lab, rows := range byLab {
		snap, err := im.Store.GetDaySnapshot(day, lab)
		if err != nil {
			return imported, skipped, err
		}
		existing := make(map[rowKey]bool, len(snap.Reservations))
		for _, r := range snap.Reservations {
			existing[rowKey{r.Lab, r.Slot, r.Email}] = true
		}

		fresh := rows[:0]
		for _, r := range rows {
			if existing[rowKey{r.Lab, r.Slot, r.Email}] {
				continue
			}
			fresh = append(fresh, r)
		}
		if len(fresh) == 0 {
			continue
		}

		if err := im.Store.BookReservations(day, lab, fresh, nil); err != nil {
			return imported, skipped, err
		}
		imported += len(fresh)
	}
	return imported, skipped, nil
}

func (im *Importer) importComments(report *Report) error {
	records, err := readSheet(im.path(CommentsFile))
	if err != nil {
		return err
	}

	for _, rec := range records {
		if rec.get(colComment) == "" {
			report.Skipped++
			continue
		}
		// undated comments are matched on email and body alone
		created := time.Now()
		var match int64
		if t, err := time.ParseInLocation(commentTimeLayout, rec.get(colCommentDate), im.Location); err == nil {
			created = t
			match = t.Unix()
		}
		exists, err := im.Store.CommentExists(rec.get(colEmail), rec.get(colComment), match)
		if err != nil {
			return err
		}
		if exists {
			continue
		}

		comment := &models.Comment{
			Name:      rec.get(colFirstName),
			Email:     rec.get(colEmail),
			Body:      rec.get(colComment),
			CreatedAt: created.Unix(),
		}
		if err := im.Store.CreateComment(comment); err != nil {
			return err
		}
		report.Comments++
	}
	return nil
}
