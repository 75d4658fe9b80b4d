package booking

import "errors"

var (
	ErrSlotBlocked    = errors.New("slot is blocked")
	ErrNoCapacity     = errors.New("not enough seats")
	ErrNoLabAccess    = errors.New("no access to lab")
	ErrGroupLimit     = errors.New("group size limit exceeded")
	ErrInvalidGroup   = errors.New("invalid group reservation")
	ErrPastSlot       = errors.New("slot is in the past")
	ErrLabClosed      = errors.New("lab does not accept bookings at this time")
	ErrUnknownLab     = errors.New("unknown lab")
	ErrAlreadyBlocked = errors.New("slot already blocked")
	ErrAlreadyBooked  = errors.New("slot already booked by this user")
	ErrNotFound       = errors.New("reservation not found")
)

var reasons = []struct {
	err    error
	reason string
}{
	{ErrSlotBlocked, "blocked"},
	{ErrNoCapacity, "capacity"},
	{ErrNoLabAccess, "access"},
	{ErrGroupLimit, "group_limit"},
	{ErrInvalidGroup, "group"},
	{ErrPastSlot, "past"},
	{ErrLabClosed, "closed"},
	{ErrUnknownLab, "unknown_lab"},
	{ErrAlreadyBooked, "duplicate"},
}

// Reason returns a short label for err, used as a metrics label.
func Reason(err error) string {
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.reason
		}
	}
	return "other"
}
