package models

type User struct {
	ID           int    `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"` // never exposed
}

// Identity is the decoded subject of a dashboard session token.
type Identity struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}
