package request

// Classifier maps a caller-defined request type to a priority tier.
// It is consulted at admission time when the producer does not set an
// explicit priority via WithPriority.
type Classifier func(requestType string) Priority

// DefaultClassifier assigns priorities for the request types served by
// the multimodal inference backend. Unknown types get PriorityNormal.
//
//   - medical_emergency, emergency: EMERGENCY
//   - medical, document, document_analysis, family_search: HIGH
//   - ocr: NORMAL
//   - chat: LOW
func DefaultClassifier(requestType string) Priority {
	switch requestType {
	case "medical_emergency", "emergency":
		return PriorityEmergency
	case "medical", "document", "document_analysis", "family_search":
		return PriorityHigh
	case "ocr":
		return PriorityNormal
	case "chat":
		return PriorityLow
	default:
		return PriorityNormal
	}
}
