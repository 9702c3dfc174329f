package smart_bartender

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error" example:"a pour is already in progress"`
}

// MessageResponse acknowledges an accepted command.
type MessageResponse struct {
	Message string `json:"message" example:"Pouring Screwdriver"`
}

// PourAccepted is returned when a pour has been started in the background.
type PourAccepted struct {
	Message         string  `json:"message" example:"Pouring Screwdriver"`
	JobID           string  `json:"job_id" example:"6f1c2f1e-5d0e-4a43-9b55-2b1f3f0f7b8e"`
	DurationSeconds float64 `json:"duration_seconds" example:"12.5"`
}

// RefillAccepted is returned when a refill has been started in the background.
type RefillAccepted struct {
	Message        string  `json:"message" example:"Refilling reservoir 3"`
	JobID          string  `json:"job_id"`
	TimeoutSeconds float64 `json:"timeout_seconds" example:"120"`
}
