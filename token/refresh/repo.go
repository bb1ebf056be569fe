package refresh

import (
	"time"
)

// StoredRefreshToken represents the server-side storage of refresh token metadata.
// The client only receives the Token field (a random string). All other fields are
// server-side metadata used for validation and rotation.
type StoredRefreshToken struct {
	Token      string    // The actual random token string (sent to client)
	UserID     string    // Owner; logout-all revokes every token of this user
	RememberMe bool      // Chooses the longer expiry
	Iat        time.Time // Issued at
}

// Repo manages server-side storage of refresh token metadata.
// A user may hold several tokens at once, one per signed-in client.
type Repo interface {
	Upsert(refreshToken *StoredRefreshToken) error
	Delete(token string) error
	Get(token string) (*StoredRefreshToken, error)
	ListByUserID(userID string) ([]*StoredRefreshToken, error)
	DeleteByUserID(userID string) (int, error)
}
