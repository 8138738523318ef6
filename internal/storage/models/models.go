package models

import "time"

// UploadRun is the audit record for one document indexing run.
type UploadRun struct {
	ID              string
	SourceName      string
	Namespace       string
	MimeType        string
	TextLength      int
	ChunksProcessed int
	ChunksSkipped   int
	CreatedAt       time.Time
}

// ChatRecord is the audit record for one chat request. The pipeline itself
// is stateless; these rows exist for the history endpoint and debugging.
type ChatRecord struct {
	ID           string
	Namespace    string
	Message      string
	Response     string
	Outcome      string
	SourcesCount int
	LatencyMS    int
	CreatedAt    time.Time
}
