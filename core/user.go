package core

import "time"

type (
	// User is an authenticated platform account (student or tutor). Users
	// come from the OAuth/OIDC provider; Subject is the stable identity key
	// used to scope notes.
	User struct {
		Subject   string    `json:"subject"`
		Login     string    `json:"login"`
		Email     string    `json:"email"`
		AvatarURL string    `json:"avatarUrl"`
		Name      string    `json:"name"`
		Role      string    `json:"role,omitempty"` // "student" | "tutor"
		CreatedAt time.Time `json:"createdAt"`
	}
)
