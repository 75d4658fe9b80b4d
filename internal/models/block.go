package models

type ScheduleBlock struct {
	ID     int64  `db:"id" json:"id"`
	Day    string `db:"day" json:"day"`
	Slot   string `db:"slot" json:"slot"`
	Lab    string `db:"lab" json:"lab"`
	Reason string `db:"reason" json:"reason"`
}

type BlockRequest struct {
	Lab    string `json:"lab" validate:"required"`
	Day    string `json:"date" validate:"required,datetime=2006-01-02"`
	Start  string `json:"start" validate:"required,datetime=15:04"`
	End    string `json:"end" validate:"required,datetime=15:04"`
	Reason string `json:"reason" validate:"max=500"`
}

func (b *BlockRequest) Validate() error {
	return validate.Struct(b)
}
