// ABOUTME: Principal is the signed-in user and the display fields copied onto new tasks
// ABOUTME: Fallback chains for name and avatar are resolved here, once, at create time

package identity

import (
	"github.com/2389/tasksync/internal/auth"
)

// AnonymousName is used when a principal has neither a full name nor an email.
const AnonymousName = "Anonymous"

// Principal identifies the acting user.
type Principal struct {
	ID         string
	Email      string
	FullName   string
	AvatarURL  string
	PictureURL string
}

// DisplayName returns the full name, then the email, then AnonymousName.
func (p Principal) DisplayName() string {
	switch {
	case p.FullName != "":
		return p.FullName
	case p.Email != "":
		return p.Email
	default:
		return AnonymousName
	}
}

// Avatar returns the avatar URL, then the picture URL, then nil.
func (p Principal) Avatar() *string {
	switch {
	case p.AvatarURL != "":
		a := p.AvatarURL
		return &a
	case p.PictureURL != "":
		a := p.PictureURL
		return &a
	default:
		return nil
	}
}

// FromClaims builds a Principal from token claims.
func FromClaims(c *auth.Claims) Principal {
	return Principal{
		ID:         c.Subject,
		Email:      c.Email,
		FullName:   c.UserMetadata.FullName,
		AvatarURL:  c.UserMetadata.AvatarURL,
		PictureURL: c.UserMetadata.Picture,
	}
}
