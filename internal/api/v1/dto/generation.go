package dto

// GenerateRequestDTO starts a page generation for a project.
type GenerateRequestDTO struct {
	Prompt string `json:"prompt" validate:"required,min=1,max=8000"`
	Model  string `json:"model,omitempty" validate:"omitempty,max=100"`
}

// CheckpointResponseDTO returns surviving partial output from an interrupted
// generation.
type CheckpointResponseDTO struct {
	ProjectID string `json:"project_id"`
	Content   string `json:"content"`
}

// RefineRequestDTO queues a conservative refinement pass.
type RefineRequestDTO struct {
	Instruction string `json:"instruction" validate:"required,min=1,max=4000"`
}

// CreditsResponseDTO reports the account's balance for UI display.
type CreditsResponseDTO struct {
	Tier    string `json:"tier"`
	Credits int    `json:"credits"`
}

// ErrorDTO is the machine-readable error body. Code is stable; clients
// branch on it, never on the message.
type ErrorDTO struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
