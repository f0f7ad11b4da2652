package store

import (
	"time"

	"movesethub/api/internal/moderation"
)

type User struct {
	ID           string
	DisplayName  string
	Email        string
	PasswordHash string
	Role         string
	ModderID     *int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Modder struct {
	ID            int64
	Name          string
	Bio           string
	DiscordHandle string
	UserID        *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Moveset struct {
	ID             int64
	Name           string
	BaseCharacter  string
	SeriesID       *int64
	SlottedID      string
	ReplacementID  string
	InfoURL        string
	ReleaseDate    *time.Time
	AdminPick      bool
	PrivateMoveset bool
	PrivateModder  bool
	ThumbImageURL  string
	HeroImageURL   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Series struct {
	ID        int64
	Name      string
	IconURL   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type MovesetModder struct {
	MovesetID int64
	ModderID  int64
	SortOrder int
	// Joined for credit listings
	ModderName string
}

// SeriesMovesetCount pairs a series with how many movesets reference it.
type SeriesMovesetCount struct {
	SeriesID int64
	Count    int
}

// LogEntry is a moderation event joined with display names for listings.
type LogEntry struct {
	moderation.Event
	ActorName string
	ItemName  string
}

// MovesetFilter narrows ListMovesets. Zero value means no filtering.
type MovesetFilter struct {
	SeriesID      *int64
	ModderID      *int64
	PrivateOnly   bool
	AdminPickOnly bool
}
