package record

// Enriched is derived 1:1 from a Raw record that survived the gate.
// Author and place data nest under named sub-objects; an absent raw place
// yields an entirely absent place key.
type Enriched struct {
	Text        string         `json:"text"` // normalized free text
	CreatedAt   string         `json:"created_at"`
	Source      string         `json:"source"`      // extracted client name
	SourceFull  string         `json:"source_full"` // original markup fragment
	Retweets    int            `json:"retweets"`
	Favorites   int            `json:"favorites"`
	Language    string         `json:"language"`
	Sentiment   Sentiment      `json:"sentiment"`
	NounPhrases []string       `json:"noun_phrases"`
	User        EnrichedUser   `json:"user"`
	Place       *EnrichedPlace `json:"place,omitempty"`
}

// Sentiment holds the text scores derived from the raw text field
type Sentiment struct {
	Polarity     float64 `json:"polarity"`     // [-1, 1]
	Subjectivity float64 `json:"subjectivity"` // [0, 1]
}

// EnrichedUser is the normalized author sub-object
type EnrichedUser struct {
	Name        string  `json:"name"`
	ScreenName  string  `json:"screen_name"`
	Description *string `json:"description,omitempty"` // absent when raw bio empty or absent
	Location    string  `json:"location"`
	TimeZone    string  `json:"time_zone"`
	Lang        string  `json:"lang"`
	Friends     int     `json:"friends"`
	Followers   int     `json:"followers"`
	Statuses    int     `json:"statuses"`
	Favourites  int     `json:"favourites"`
	Listed      int     `json:"listed"`
	Verified    bool    `json:"verified"`
	Protected   bool    `json:"protected"`
}

// EnrichedPlace is the optional place sub-object
type EnrichedPlace struct {
	Type     string `json:"type"`
	FullName string `json:"full_name"`
	Country  string `json:"country"`
}
