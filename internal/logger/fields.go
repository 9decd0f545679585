package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// ============================================
// Standard Tracing Fields (Context level)
// These fields are propagated through the call chain
// ============================================

const (
	// FieldRequestID is the HTTP request ID (UUID)
	FieldRequestID = "request_id"

	// FieldJobID is the video processing job ID
	FieldJobID = "job_id"

	// FieldYouTubeID is the 11-character YouTube video identifier
	FieldYouTubeID = "youtube_id"

	// FieldVideoID is the stored video record ID
	FieldVideoID = "video_id"

	// FieldStep is the pipeline step label
	FieldStep = "step"

	// FieldComponent is the component/module name
	FieldComponent = "component"

	// FieldProvider is the external provider handling a call
	FieldProvider = "provider"
)

// ============================================
// Standard Metric Fields (Entry level)
// These fields are used for aggregation and alerting
// ============================================

const (
	// FieldDurationMs is the execution duration in milliseconds
	FieldDurationMs = "duration_ms"

	// FieldCount is a generic count field
	FieldCount = "count"

	// FieldSize is the data size in bytes
	FieldSize = "size"

	// FieldStatus is the operation status
	FieldStatus = "status"

	// FieldChunks is the number of audio chunks transcribed
	FieldChunks = "chunks"
)
