package domain

// UsersCollection is the document store collection holding user profiles.
const UsersCollection = "users"

// User document field names used for partial updates.
const (
	UserFieldUsername  = "username"
	UserFieldAvatarRef = "avatarRef"
)

// User is a public profile as stored in the users collection.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	// AvatarRef is the blob store path of the avatar image, empty when the user has none.
	AvatarRef string `json:"avatarRef"`
}

// HasAvatar reports whether an avatar has been uploaded for the user.
func (u User) HasAvatar() bool {
	return u.AvatarRef != ""
}

// AvatarBlobPath returns the blob store path for a user's avatar.
func AvatarBlobPath(userID string) string {
	return "users/" + userID + ".png"
}

// Identity is the verified subject of an identity provider token.
type Identity struct {
	UserID      string
	DisplayName string
	PhotoURL    string
}
