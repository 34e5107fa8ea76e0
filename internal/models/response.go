package models

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type ArtworkPage struct {
	Items    []Artwork `json:"items"`
	Page     int       `json:"page"`
	PageSize int       `json:"pageSize"`
	Total    int       `json:"total"`
	HasMore  bool      `json:"hasMore"`
}

type SubmitResponse struct {
	JobID string `json:"jobId"`
}

// CurrentUserResponse carries a nil user for anonymous callers.
type CurrentUserResponse struct {
	User *User `json:"user"`
}
