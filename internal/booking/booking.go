// Package booking decides whether seats in a lab can be reserved.
//
// Everything here works on a models.DaySnapshot, the state of one lab on one
// day. Callers load the snapshot and persist the outcome; this package never
// touches storage.
package booking

import (
	"fmt"
	"time"

	"github.com/shrimpsizemoose/labsync/internal/models"
	"github.com/shrimpsizemoose/labsync/internal/slots"
)

type Lab struct {
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
	// LatestSlot is the last label a booking may touch, start or end.
	// Empty means the lab follows the grid closing time.
	LatestSlot    string `json:"latest_slot,omitempty"`
	Restricted    bool   `json:"restricted"`
	GroupBookings bool   `json:"group_bookings"`
}

type SlotAvailability struct {
	Slot      string `json:"slot"`
	Capacity  int    `json:"capacity"`
	Occupied  int    `json:"occupied"`
	Available int    `json:"available"`
}

// Occupancy sums the seats taken per slot by the lab's rows.
func Occupancy(snap *models.DaySnapshot, lab string) map[string]int {
	occupied := make(map[string]int)
	if snap == nil {
		return occupied
	}
	for _, r := range snap.Reservations {
		if r.Lab != lab {
			continue
		}
		occupied[r.Slot] += r.Seats()
	}
	return occupied
}

func blockedSlots(snap *models.DaySnapshot, lab string) map[string]bool {
	blocked := make(map[string]bool)
	if snap == nil {
		return blocked
	}
	for _, b := range snap.Blocks {
		if b.Lab == lab {
			blocked[b.Slot] = true
		}
	}
	return blocked
}

// CheckAvailability reports free seats for every requested slot. It fails
// if any slot is blocked or has no seat left.
func CheckAvailability(snap *models.DaySnapshot, lab Lab, wanted []string) ([]SlotAvailability, error) {
	blocked := blockedSlots(snap, lab.Name)
	for _, slot := range wanted {
		if blocked[slot] {
			return nil, fmt.Errorf("%w: %s at %s", ErrSlotBlocked, lab.Name, slot)
		}
	}

	occupied := Occupancy(snap, lab.Name)
	result := make([]SlotAvailability, 0, len(wanted))
	for _, slot := range wanted {
		available := lab.Capacity - occupied[slot]
		if available <= 0 {
			return nil, fmt.Errorf("%w: %s at %s is full", ErrNoCapacity, lab.Name, slot)
		}
		result = append(result, SlotAvailability{
			Slot:      slot,
			Capacity:  lab.Capacity,
			Occupied:  occupied[slot],
			Available: available,
		})
	}
	return result, nil
}

// CheckLatestSlot rejects ranges that start or end after the lab's latest
// bookable time.
func CheckLatestSlot(lab Lab, start, end string) error {
	if lab.LatestSlot == "" {
		return nil
	}
	if start > lab.LatestSlot || end > lab.LatestSlot {
		return fmt.Errorf("%w: %s only accepts bookings until %s", ErrLabClosed, lab.Name, lab.LatestSlot)
	}
	return nil
}

// ValidateWindow rejects slots that already started and slots past the
// lab's latest bookable time. end is the end label of the range.
func ValidateWindow(lab Lab, day time.Time, wanted []string, end string, now time.Time) error {
	if len(wanted) == 0 {
		return fmt.Errorf("%w: empty range", slots.ErrInvalidRange)
	}

	if err := CheckLatestSlot(lab, wanted[0], end); err != nil {
		return err
	}

	today := truncateDay(now)
	switch d := truncateDay(day); {
	case d.Before(today):
		return fmt.Errorf("%w: %s", ErrPastSlot, day.Format(models.DateLayout))
	case d.Equal(today):
		if wanted[0] <= now.Format(slots.Layout) {
			return fmt.Errorf("%w: %s already started", ErrPastSlot, wanted[0])
		}
	}
	return nil
}

// HasAccess tells whether user may book lab on the given day. expired is
// set when a temporary grant lapsed and should be revoked.
func HasAccess(user *models.User, lab Lab, today time.Time) (allowed bool, expired bool, err error) {
	if !lab.Restricted {
		return true, false, nil
	}
	if user == nil || !user.LabAccess {
		return false, false, nil
	}
	expiry, temporary, err := user.ExpiryDate(today.Location())
	if err != nil {
		return false, false, err
	}
	if temporary && truncateDay(today).After(truncateDay(expiry)) {
		return false, true, nil
	}
	return true, false, nil
}

type Request struct {
	Lab       string
	Day       string
	Slots     []string
	Kind      string
	GroupName string
	Headcount int
	Purpose   string
}

// Normalize fills in the type and headcount a lab implies. Labs without
// group bookings only take individual one-seat reservations.
func (r *Request) Normalize(lab Lab) {
	if !lab.GroupBookings {
		r.Kind = ""
		r.GroupName = ""
		r.Headcount = 1
		return
	}
	if r.Kind == "" {
		r.Kind = models.KindIndividual
	}
	if r.Kind == models.KindIndividual {
		r.GroupName = ""
		r.Headcount = 1
	}
}

// ValidateCommit re-checks everything a booking depends on against the
// snapshot it is about to be written into.
func ValidateCommit(snap *models.DaySnapshot, lab Lab, req Request, user *models.User, hasAccess bool, limit *models.GroupLimit) error {
	if lab.Restricted && !hasAccess {
		return fmt.Errorf("%w: %s", ErrNoLabAccess, lab.Name)
	}

	if err := validateGroup(lab, req, limit); err != nil {
		return err
	}

	for _, r := range snap.Reservations {
		if r.Lab != lab.Name || r.Email != user.Email {
			continue
		}
		for _, slot := range req.Slots {
			if r.Slot == slot {
				return fmt.Errorf("%w: %s at %s", ErrAlreadyBooked, lab.Name, slot)
			}
		}
	}

	availability, err := CheckAvailability(snap, lab, req.Slots)
	if err != nil {
		return err
	}
	seats := req.Headcount
	if seats < 1 {
		seats = 1
	}
	for _, a := range availability {
		if seats > a.Available {
			return fmt.Errorf(
				"%w: %s at %s has %d seats left, %d requested",
				ErrNoCapacity, lab.Name, a.Slot, a.Available, seats,
			)
		}
	}
	return nil
}

func validateGroup(lab Lab, req Request, limit *models.GroupLimit) error {
	if req.Kind != models.KindGroup {
		return nil
	}
	if !lab.GroupBookings {
		return fmt.Errorf("%w: %s does not take group reservations", ErrInvalidGroup, lab.Name)
	}
	if req.GroupName == "" {
		return fmt.Errorf("%w: group name is required", ErrInvalidGroup)
	}
	if req.Headcount < 2 || req.Headcount > lab.Capacity {
		return fmt.Errorf("%w: group size must be between 2 and %d", ErrInvalidGroup, lab.Capacity)
	}
	if limit != nil && req.Headcount > limit.MaxHeadcount {
		return fmt.Errorf("%w: limit is %d", ErrGroupLimit, limit.MaxHeadcount)
	}
	return nil
}

// Rows expands a request into one reservation row per slot.
func Rows(req Request, user *models.User, createdAt time.Time) []models.Reservation {
	headcount := req.Headcount
	if headcount < 1 {
		headcount = 1
	}
	rows := make([]models.Reservation, 0, len(req.Slots))
	for _, slot := range req.Slots {
		rows = append(rows, models.Reservation{
			Day:         req.Day,
			Slot:        slot,
			Lab:         req.Lab,
			Email:       user.Email,
			FirstName:   user.FirstName,
			LastName:    user.LastName,
			StudentCode: user.StudentCode,
			Purpose:     req.Purpose,
			Kind:        req.Kind,
			GroupName:   req.GroupName,
			Headcount:   headcount,
			CreatedAt:   createdAt.Unix(),
		})
	}
	return rows
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
