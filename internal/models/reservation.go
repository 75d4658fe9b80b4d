package models

const (
	KindIndividual = "individual"
	KindGroup      = "group"
)

type Reservation struct {
	ID          int64  `db:"id" json:"id"`
	Day         string `db:"day" json:"day"`
	Slot        string `db:"slot" json:"slot"`
	Lab         string `db:"lab" json:"lab"`
	Email       string `db:"email" json:"email"`
	FirstName   string `db:"first_name" json:"first_name"`
	LastName    string `db:"last_name" json:"last_name"`
	StudentCode string `db:"student_code" json:"student_code"`
	Purpose     string `db:"purpose" json:"purpose"`
	Kind        string `db:"kind" json:"kind"`
	GroupName   string `db:"group_name" json:"group_name"`
	Headcount   int    `db:"headcount" json:"headcount"`
	Confirmed   bool   `db:"confirmed" json:"confirmed"`
	CreatedAt   int64  `db:"created_at" json:"created_at"`
}

// Seats is the number of seats the row occupies in its slot.
func (r *Reservation) Seats() int {
	if r.Headcount < 1 {
		return 1
	}
	return r.Headcount
}

// ReservationKey identifies a single row: one user holds at most one seat
// row per lab, day and slot.
type ReservationKey struct {
	Day   string `json:"day" validate:"required,datetime=2006-01-02"`
	Lab   string `json:"lab" validate:"required"`
	Slot  string `json:"slot" validate:"required,datetime=15:04"`
	Email string `json:"email" validate:"required,email"`
}

func (k *ReservationKey) Validate() error {
	return validate.Struct(k)
}

type ReservationFilter struct {
	Day   string
	Lab   string
	Email string
}

type BookingRequest struct {
	Lab       string `json:"lab" validate:"required"`
	Day       string `json:"date" validate:"required,datetime=2006-01-02"`
	Start     string `json:"start" validate:"required,datetime=15:04"`
	End       string `json:"end" validate:"required,datetime=15:04"`
	Kind      string `json:"kind" validate:"omitempty,oneof=individual group"`
	GroupName string `json:"group_name" validate:"required_if=Kind group,max=100"`
	Headcount int    `json:"headcount" validate:"gte=0,lte=1000"`
	Purpose   string `json:"purpose" validate:"max=500"`
}

func (b *BookingRequest) Validate() error {
	return validate.Struct(b)
}

// DaySnapshot is the state of one lab on one day, loaded for the duration
// of a single request or transaction.
type DaySnapshot struct {
	Day          string
	Lab          string
	Reservations []Reservation
	Blocks       []ScheduleBlock
}
