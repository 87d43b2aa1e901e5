package orders

// SubmissionResponse reports a submission and, once placed, its order
type SubmissionResponse struct {
	Submission
	Order *Order `json:"order,omitempty"`
}
