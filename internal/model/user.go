// Package model defines the data structures used throughout the application.
package model

import "time"

// DefaultTheme is the theme name assigned to new accounts.
const DefaultTheme = "default"

// User represents a registered identity.
//
// An account authenticates either with a password (PasswordHash set) or
// through Google (GoogleID set), and may carry both once a password account
// has been linked to Google. At least one of the two is always present.
//
// Email is stored lowercased; Username and Email are unique across accounts.
type User struct {
	ID                 string             `json:"id"`
	Username           string             `json:"username"`
	Email              string             `json:"email"`
	PasswordHash       string             `json:"-"`
	GoogleID           string             `json:"googleId,omitempty"`
	ProfilePicture     string             `json:"profilePicture"`
	Bio                string             `json:"bio"`
	SocialLinks        SocialLinks        `json:"socialLinks"`
	SelectedTheme      string             `json:"selectedTheme"`
	ThemeCustomization ThemeCustomization `json:"themeCustomization"`
	LastLogin          time.Time          `json:"lastLogin"`
	LoginCount         int64              `json:"loginCount"`
	CreatedAt          time.Time          `json:"createdAt"`
	UpdatedAt          time.Time          `json:"updatedAt"`
}

// SocialLinks is the set of external profile links shown on a portfolio.
type SocialLinks struct {
	Website  string `json:"website,omitempty"`
	GitHub   string `json:"github,omitempty"`
	LinkedIn string `json:"linkedin,omitempty"`
	Twitter  string `json:"twitter,omitempty"`
}

// ThemeCustomization holds optional color overrides on top of the selected
// theme. Values are passed through as the client sends them.
type ThemeCustomization struct {
	PrimaryColor   string `json:"primaryColor,omitempty"`
	SecondaryColor string `json:"secondaryColor,omitempty"`
	AccentColor    string `json:"accentColor,omitempty"`
}

// HasPassword reports whether the account can log in with a password.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// PublicProfile is the subset of a User that is safe to show to anyone.
// It never includes the email address or credentials.
type PublicProfile struct {
	ID                 string             `json:"id"`
	Username           string             `json:"username"`
	ProfilePicture     string             `json:"profilePicture"`
	Bio                string             `json:"bio"`
	SocialLinks        SocialLinks        `json:"socialLinks"`
	SelectedTheme      string             `json:"selectedTheme"`
	ThemeCustomization ThemeCustomization `json:"themeCustomization"`
	CreatedAt          time.Time          `json:"createdAt"`
}

// Public returns the public view of the user.
func (u *User) Public() PublicProfile {
	return PublicProfile{
		ID:                 u.ID,
		Username:           u.Username,
		ProfilePicture:     u.ProfilePicture,
		Bio:                u.Bio,
		SocialLinks:        u.SocialLinks,
		SelectedTheme:      u.SelectedTheme,
		ThemeCustomization: u.ThemeCustomization,
		CreatedAt:          u.CreatedAt,
	}
}
