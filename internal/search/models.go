// Package search maintains the Elasticsearch copy of member profiles.
package search

import (
	"time"

	"github.com/google/uuid"

	"trustline/portal-backend/internal/users"
)

// Profile is the indexed document for one member.
type Profile struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Headline   string    `json:"headline"`
	Location   string    `json:"location"`
	Industry   string    `json:"industry"`
	AvatarURL  string    `json:"avatar_url,omitempty"`
	TrustScore int       `json:"trust_score"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func profileFromUser(u *users.User) Profile {
	return Profile{
		ID:         u.ID,
		Name:       u.FullName(),
		Headline:   u.Headline,
		Location:   u.Location,
		Industry:   u.Industry,
		AvatarURL:  u.AvatarURL,
		TrustScore: u.TrustScore,
		UpdatedAt:  u.UpdatedAt,
	}
}

type Query struct {
	Text     string
	Industry string
	MinScore int
	Limit    int
	Offset   int
}

type Result struct {
	Items  []Profile `json:"items"`
	Total  int64     `json:"total"`
	Limit  int       `json:"limit"`
	Offset int       `json:"offset"`
}

const profileMapping = `{
  "mappings": {
    "properties": {
      "id":          {"type": "keyword"},
      "name":        {"type": "text"},
      "headline":    {"type": "text"},
      "location":    {"type": "text"},
      "industry":    {"type": "keyword"},
      "avatar_url":  {"type": "keyword", "index": false},
      "trust_score": {"type": "integer"},
      "updated_at":  {"type": "date"}
    }
  }
}`
