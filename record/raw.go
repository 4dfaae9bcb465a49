// Package record defines the fixed schemas for raw and enriched stream records.
//
// Raw records arrive as one JSON object per line exactly as the upstream
// provider produced them. Enriched records are derived 1:1 from surviving
// raw records. Optionality is explicit: absent sub-records are nil pointers
// and marshal to absent keys, never null-filled objects.
package record

import (
	"encoding/json"
)

// Raw represents one upstream event exactly as received.
type Raw struct {
	Text            string          `json:"text"`
	CreatedAt       string          `json:"created_at"`
	Source          string          `json:"source"` // client identifier embedded in a markup fragment
	RetweetCount    int             `json:"retweet_count"`
	FavoriteCount   int             `json:"favorite_count"`
	Lang            string          `json:"lang"`
	Coordinates     *Coordinates    `json:"coordinates,omitempty"`
	RetweetedStatus json.RawMessage `json:"retweeted_status,omitempty"`
	User            RawUser         `json:"user"`
	Place           *RawPlace       `json:"place,omitempty"`
}

// Coordinates holds a GeoJSON-style point
type Coordinates struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

// RawUser is the author sub-record of a raw event
type RawUser struct {
	Name            string  `json:"name"`
	ScreenName      string  `json:"screen_name"`
	Description     *string `json:"description"`
	Location        string  `json:"location"`
	TimeZone        string  `json:"time_zone"`
	Lang            string  `json:"lang"`
	FriendsCount    int     `json:"friends_count"`
	FollowersCount  int     `json:"followers_count"`
	StatusesCount   int     `json:"statuses_count"`
	FavouritesCount int     `json:"favourites_count"`
	ListedCount     int     `json:"listed_count"`
	Verified        bool    `json:"verified"`
	Protected       bool    `json:"protected"`
}

// RawPlace is the optional place sub-record of a raw event
type RawPlace struct {
	PlaceType string `json:"place_type"`
	FullName  string `json:"full_name"`
	Country   string `json:"country"`
}

// IsRepost reports whether this event is a repost of another record.
// Upstream marks reposts by embedding the original under retweeted_status.
func (r *Raw) IsRepost() bool {
	return len(r.RetweetedStatus) > 0 && string(r.RetweetedStatus) != "null"
}
