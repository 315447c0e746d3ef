// internal/domain/user/entity.go
package user

// User is the subset of the account record billing needs.
type User struct {
	ID    string `json:"id" db:"id"`
	Email string `json:"email" db:"email"`
	Name  string `json:"name" db:"name"`
}
