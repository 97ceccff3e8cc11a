package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// Question 课时测验题目
type Question struct {
	QuestionText       string   `json:"questionText"`
	Options            []string `json:"options"`
	CorrectAnswerIndex int      `json:"correctAnswerIndex"`
}

type QuestionList []Question

func (l *QuestionList) Scan(value interface{}) error {
	data, err := jsonBytes(value)
	if err != nil {
		return err
	}
	if len(data) == 0 || string(data) == "null" {
		*l = nil
		return nil
	}
	return json.Unmarshal(data, l)
}

func (l QuestionList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// swagger:model Course
type Course struct {
	ID          string       `gorm:"primaryKey;size:100" json:"id"`
	Title       string       `gorm:"size:255;not null" json:"title"`
	Description string       `gorm:"type:text" json:"description"`
	CourseTitle string       `gorm:"size:255" json:"courseTitle"`
	VideoID     string       `gorm:"size:100;index" json:"videoId"`
	VideoURL    string       `gorm:"size:255" json:"videoUrl"`
	Questions   QuestionList `gorm:"type:json" json:"questions"`
	TargetAge   string       `gorm:"size:50" json:"targetAge"`
	Category    string       `gorm:"size:100" json:"category"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

func (Course) TableName() string {
	return "courses"
}
