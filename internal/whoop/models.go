package whoop

import (
	"bytes"
	"encoding/json"
	"time"
)

// WorkoutID is numeric in the v1 API and a UUID string in later versions.
type WorkoutID string

func (id *WorkoutID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	data = bytes.Trim(data, `"`)
	*id = WorkoutID(data)
	return nil
}

type Workout struct {
	ID             WorkoutID     `json:"id"`
	UserID         int64         `json:"user_id"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
	Start          time.Time     `json:"start"`
	End            time.Time     `json:"end"`
	TimezoneOffset string        `json:"timezone_offset"`
	SportID        int           `json:"sport_id"`
	ScoreState     string        `json:"score_state"`
	Score          *WorkoutScore `json:"score,omitempty"`
}

type WorkoutScore struct {
	Strain           float64 `json:"strain"`
	AverageHeartRate int     `json:"average_heart_rate"`
	MaxHeartRate     int     `json:"max_heart_rate"`
	Kilojoule        float64 `json:"kilojoule"`
	DistanceMeter    float64 `json:"distance_meter"`
}

// workoutPage is one page of the paginated workout collection.
type workoutPage struct {
	Records   []Workout `json:"records"`
	NextToken string    `json:"next_token"`
}

// decodeWorkoutPage also accepts a bare JSON array, which older endpoints return.
func decodeWorkoutPage(body []byte) (workoutPage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var records []Workout
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return workoutPage{}, err
		}
		return workoutPage{Records: records}, nil
	}
	var page workoutPage
	if err := json.Unmarshal(trimmed, &page); err != nil {
		return workoutPage{}, err
	}
	return page, nil
}
