package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	ReasonAdapterUnavailable ReasonCode = "adapter_unavailable"
	ReasonAdapterError       ReasonCode = "adapter_error"

	ReasonEmptyQuestionSet ReasonCode = "empty_question_set"
	ReasonQuestionGen      ReasonCode = "question_gen"

	ReasonRateLimited      ReasonCode = "rate_limited"
	ReasonEvaluationFailed ReasonCode = "evaluation_failed"

	ReasonSessionNotFound ReasonCode = "session_not_found"
	ReasonSessionPhase    ReasonCode = "session_phase"

	ReasonTransportSend ReasonCode = "transport_send"
	ReasonNotifySend    ReasonCode = "notify_send"
)
