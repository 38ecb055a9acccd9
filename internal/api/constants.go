package api

// API limits and constants.
const (
	// MaxAvatarSize is the largest accepted avatar upload (5 MB).
	MaxAvatarSize = 5 << 20

	// MaxSearchLimit caps the number of search hits per request.
	MaxSearchLimit = 100
)

// Cache-Control header values.
const (
	CacheOneWeek       = "public, max-age=604800"
	CacheOneDayPrivate = "private, max-age=86400"
	CacheNoStore       = "no-cache"
)
