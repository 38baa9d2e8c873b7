package model

import "time"

// Project is one generated web page and its editing history. HTML and Title
// are updated last-write-wins; financial state never lives here.
type Project struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Title     string    `db:"title" json:"title"`
	HTML      string    `db:"html" json:"html"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// RefineJob is the payload queued for the refinement pipeline.
type RefineJob struct {
	ProjectID   string `json:"project_id"`
	UserID      string `json:"user_id"`
	Instruction string `json:"instruction"`
}
