package users

import (
	"time"

	"github.com/google/uuid"
)

// User is a CodeDojo account. It is keyed durably by ID and uniquely by
// Codeforces handle; ratings are refreshed on every successful login.
type User struct {
	ID        uuid.UUID `json:"_id"        db:"id"`
	Handle    string    `json:"handle"     db:"handle"`
	Email     string    `json:"email"      db:"email"`
	Rank      string    `json:"rank"       db:"rank"`
	Rating    *int      `json:"rating"     db:"rating"`
	MaxRank   string    `json:"maxRank"    db:"max_rank"`
	MaxRating *int      `json:"maxRating"  db:"max_rating"`
	CreatedAt time.Time `json:"createdAt"  db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt"  db:"updated_at"`
}
