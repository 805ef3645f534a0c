package models

import "time"

// Activity is one imported exercise session. Field names follow the
// upstream Strava payload so stored items and API responses share one shape.
type Activity struct {
	ActivityID         int64    `json:"activityId"`
	UserID             string   `json:"userId"`
	Name               string   `json:"name,omitempty"`
	Type               string   `json:"type"`
	StartDate          string   `json:"start_date"`
	StartDateLocal     string   `json:"start_date_local,omitempty"`
	Timezone           string   `json:"timezone,omitempty"`
	Distance           float64  `json:"distance"`
	MovingTime         float64  `json:"moving_time"`
	ElapsedTime        float64  `json:"elapsed_time"`
	TotalElevationGain float64  `json:"total_elevation_gain"`
	AverageSpeed       float64  `json:"average_speed"`
	MaxSpeed           float64  `json:"max_speed"`
	HasHeartrate       bool     `json:"has_heartrate"`
	AverageHeartrate   *float64 `json:"average_heartrate,omitempty"`
	MaxHeartrate       *float64 `json:"max_heartrate,omitempty"`
}

// StravaToken is a row in the strava_tokens table.
type StravaToken struct {
	UserID       string
	AthleteID    int64
	AccessToken  string
	RefreshToken string
	TokenType    string
	Expiry       time.Time
	UpdatedAt    time.Time
}
