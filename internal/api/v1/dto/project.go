package dto

import "time"

type ProjectCreateDTO struct {
	Title *string `json:"title,omitempty" validate:"omitempty,max=200"`
}

type ProjectUpdateDTO struct {
	Title *string `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
}

type ProjectResponseDTO struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	HTML      string    `json:"html"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
