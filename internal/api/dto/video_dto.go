package dto

type ProcessVideoRequest struct {
	Text     string `json:"text" binding:"required,min=10,max=3000"`
	Style    string `json:"style"`
	AvatarID string `json:"avatar_id"`
	VoiceID  string `json:"voice_id"`
	Duration int    `json:"duration" binding:"omitempty,min=15,max=300"`
}

type ProcessVideoResponse struct {
	JobID                string `json:"job_id"`
	Status               string `json:"status"`
	Message              string `json:"message"`
	EstimatedTimeSeconds int    `json:"estimated_time_seconds"`
}

type GenerateScriptRequest struct {
	Text         string `json:"text" binding:"required,min=10,max=3000"`
	Style        string `json:"style"`
	DurationHint int    `json:"duration_hint" binding:"omitempty,min=15,max=300"`
}

type GenerateScriptResponse struct {
	OriginalText             string `json:"original_text"`
	Script                   string `json:"script"`
	Style                    string `json:"style"`
	WordCount                int    `json:"word_count"`
	EstimatedDurationSeconds int    `json:"estimated_duration_seconds"`
}
