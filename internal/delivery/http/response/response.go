package response

// StatusResponse is the DTO for GET /api/status, mirroring entity.ProcessedStatus.
type StatusResponse struct {
	URL       string `json:"url"`
	ID        string `json:"id"`
	Processed bool   `json:"processed"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Processed int    `json:"processed"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
