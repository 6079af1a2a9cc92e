package user

import "budgetchef/internal/recipe"

// User is a registered account.
type User struct {
	ID           int64  `json:"user_id" db:"user_id"`
	Username     string `json:"user_name" db:"user_name"`
	PasswordHash string `json:"-" db:"password"`
	Allergy      string `json:"allergy" db:"allergy"`
}

// Allergies returns the user's allergy list as search entries.
func (u *User) Allergies() []string {
	return recipe.SplitAllergies(u.Allergy)
}
