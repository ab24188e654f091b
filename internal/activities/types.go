package activities

type ExtractTextInput struct {
	PaperPath string `json:"paper_path"`
}

type ExtractTextOutput struct {
	Text      string `json:"text"`
	PageCount int    `json:"page_count"`
	Title     string `json:"title,omitempty"`
}

type StorePaperInput struct {
	PaperID string `json:"paper_id,omitempty"`
	Title   string `json:"title,omitempty"`
	Text    string `json:"text"`
}

type StorePaperOutput struct {
	PaperID       string `json:"paper_id"`
	Title         string `json:"title"`
	CitationStyle string `json:"citation_style"`
	Citations     int    `json:"citations"`
}

type IndexPaperInput struct {
	PaperID string `json:"paper_id"`
}

type IndexPaperOutput struct {
	Chunks int `json:"chunks"`
}

type RemoveUploadInput struct {
	PaperPath string `json:"paper_path"`
}
