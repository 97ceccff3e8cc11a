package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

type StringList []string

func (l *StringList) Scan(value interface{}) error {
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

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// swagger:model News
type News struct {
	ID          string     `gorm:"primaryKey;size:100" json:"id"`
	Title       string     `gorm:"size:255;not null" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	Image       string     `gorm:"size:255" json:"image"`
	Tags        StringList `gorm:"type:json" json:"tags"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func (News) TableName() string {
	return "news"
}
