package models

type LabCapacity struct {
	Lab      string `db:"lab" json:"lab"`
	Capacity int    `db:"capacity" json:"capacity" validate:"required,min=1,max=1000"`
}

func (c *LabCapacity) Validate() error {
	return validate.Struct(c)
}

type GroupLimit struct {
	Kind         string `db:"kind" json:"kind" validate:"required,max=50"`
	MaxHeadcount int    `db:"max_headcount" json:"max_headcount" validate:"required,min=1,max=100"`
}

func (g *GroupLimit) Validate() error {
	return validate.Struct(g)
}

// LabRules holds free-form rules text. An empty Lab means the global rules.
type LabRules struct {
	Lab  string `db:"lab" json:"lab"`
	Body string `db:"body" json:"body"`
}

type CountRow struct {
	Name  string `db:"name" json:"name"`
	Total int64  `db:"total" json:"total"`
}

type ReservationStats struct {
	Total    int64      `json:"total"`
	ByLab    []CountRow `json:"by_lab"`
	ByDay    []CountRow `json:"by_day"`
	BySlot   []CountRow `json:"by_slot"`
	TopUsers []CountRow `json:"top_users"`
}
