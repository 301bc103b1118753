package documents

import (
	"path"
	"strings"

	"github.com/google/uuid"
)

// KeyPrefix is the object key prefix under which a user's uploads live.
func KeyPrefix(userID uuid.UUID) string {
	return "certifications/" + userID.String() + "/"
}

// OwnsKey reports whether key was issued for the user's uploads.
func OwnsKey(userID uuid.UUID, key string) bool {
	return strings.HasPrefix(key, KeyPrefix(userID)) && !strings.Contains(key, "..")
}

// NewKey builds a unique object key, keeping only the base name of the
// client's file name.
func NewKey(userID uuid.UUID, fileName, ext string) string {
	base := strings.TrimSuffix(path.Base(strings.ReplaceAll(fileName, "\\", "/")), path.Ext(fileName))
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, base)
	if base == "" || base == "." {
		base = "document"
	}
	return KeyPrefix(userID) + uuid.NewString() + "-" + base + ext
}
