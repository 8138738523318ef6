package rag

// Kind tags a pipeline outcome. The pipeline always produces exactly one of
// these; the HTTP layer maps each to a response shape, which keeps the
// "always answer something" contract in one place instead of scattered
// through handlers.
type Kind int

const (
	KindSuccess Kind = iota
	KindDegraded
	KindRejected
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindDegraded:
		return "degraded"
	case KindRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Source identifies where a retrieved chunk came from.
type Source struct {
	Source     string  `json:"source"`
	ChunkIndex int     `json:"chunkIndex"`
	Score      float32 `json:"score"`
}

type Outcome struct {
	Kind     Kind
	Response string
	Sources  []Source
	// Reason is set for degraded outcomes (missing_credentials,
	// embedding_failed, retrieval_failed, generation_failed).
	Reason string
	// ValidationError is set for rejected outcomes.
	ValidationError string
}

func success(response string, sources []Source) Outcome {
	return Outcome{Kind: KindSuccess, Response: response, Sources: sources}
}

func degraded(reason, fallback string) Outcome {
	return Outcome{Kind: KindDegraded, Reason: reason, Response: fallback}
}

func rejected(msg string) Outcome {
	return Outcome{Kind: KindRejected, ValidationError: msg}
}
