package models

type Comment struct {
	ID        int64  `db:"id" json:"id"`
	Name      string `db:"name" json:"name"`
	Email     string `db:"email" json:"email"`
	Body      string `db:"body" json:"body"`
	CreatedAt int64  `db:"created_at" json:"created_at"`
}

type CommentInput struct {
	Name  string `json:"name" validate:"required,max=200"`
	Email string `json:"email" validate:"required,email"`
	Body  string `json:"body" validate:"required,max=2000"`
}

func (c *CommentInput) Validate() error {
	return validate.Struct(c)
}
