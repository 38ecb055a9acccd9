package imagecache

import "strings"

// Key identifies one cached image. Keys are namespaced so that a cover URL can never
// collide with a user id.
type Key string

const (
	coverNamespace  = "cover"
	avatarNamespace = "avatar"
)

// CoverKey returns the cache key of a book cover downloaded from url.
func CoverKey(url string) Key {
	return Key(coverNamespace + ":" + url)
}

// AvatarKey returns the cache key of a user's avatar.
func AvatarKey(userID string) Key {
	return Key(avatarNamespace + ":" + userID)
}

// Namespace returns the part of the key before the first colon.
func (k Key) Namespace() string {
	ns, _, ok := strings.Cut(string(k), ":")
	if !ok {
		return ""
	}
	return ns
}

// String implements fmt.Stringer.
func (k Key) String() string {
	return string(k)
}
