// Package model defines the data structures used throughout the application.
package model

// User is the identity carried inside a session token and returned by
// GET /api/auth/user.
//
// UserID is the GitHub numeric account ID. It is stable for the lifetime of the
// account, so it doubles as the key for like membership.
type User struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"` // GitHub login
	Avatar   string `json:"avatar"`   // avatar URL
	Name     string `json:"name"`     // display name, falls back to the login
}

// GitHubProfile is the portion of the GitHub /user response we read.
type GitHubProfile struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	AvatarURL string `json:"avatar_url"`
	Name      string `json:"name"`
}

// ToUser maps a GitHub profile onto session identity. An empty display name
// falls back to the login.
func (p GitHubProfile) ToUser() User {
	name := p.Name
	if name == "" {
		name = p.Login
	}
	return User{
		UserID:   p.ID,
		Username: p.Login,
		Avatar:   p.AvatarURL,
		Name:     name,
	}
}
