package model

import (
	"time"
)

type Event struct {
	ID        string    `couchboot:"id" json:"id"`
	Title     string    `json:"title"`
	Host      string    `json:"host"`
	Attendees int       `json:"attendees"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Revision  int64     `couchboot:"version" json:"revision"`
}

func (Event) GetCollectionName() string {
	return "events"
}
