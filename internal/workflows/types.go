package workflows

type PaperIngestInput struct {
	PaperPath string `json:"paper_path"`
	Filename  string `json:"filename,omitempty"`
	Title     string `json:"title,omitempty"`
	// KeepUpload leaves the uploaded PDF in place once ingestion ends.
	KeepUpload bool `json:"keep_upload,omitempty"`
}

type IngestStatus struct {
	PaperID       string            `json:"paper_id,omitempty"`
	Filename      string            `json:"filename"`
	Title         string            `json:"title,omitempty"`
	CurrentStep   string            `json:"current_step"`
	Status        string            `json:"status"`
	FailReason    string            `json:"fail_reason,omitempty"`
	PageCount     int               `json:"page_count"`
	CitationStyle string            `json:"citation_style,omitempty"`
	Citations     int               `json:"citations"`
	Chunks        int               `json:"chunks"`
	Steps         map[string]string `json:"steps"`
}

const (
	StatusProcessing = "processing"
	StatusProcessed  = "processed"
	StatusFailed     = "failed"
)
