package domain

// UploadedFile is returned to the client after an upload
type UploadedFile struct {
	FileName      string `json:"fileName"`
	FileExtension string `json:"fileExtension"`
	FileID        string `json:"fileId"`
}

// ExtractedContent is the `-extracted.json` sidecar of an upload
type ExtractedContent struct {
	Title     string   `json:"title"`
	Contents  []string `json:"contents"`
	PageCount int      `json:"pageCount"`
	// Pages holds the page of each chunk when known
	Pages []int `json:"pages,omitempty"`
}

// EmbeddingVector is one entry of the `-embeddings.json` sidecar
type EmbeddingVector struct {
	Vector []float64 `json:"vector"`
}

// EmbeddingsFile is the `-embeddings.json` sidecar of an upload
type EmbeddingsFile struct {
	Model      string            `json:"model"`
	Embeddings []EmbeddingVector `json:"embeddings"`
}

// PageContent is the response of the upload content endpoint
type PageContent struct {
	FileID    string   `json:"fileId"`
	Title     string   `json:"title"`
	Page      int      `json:"page"`
	PageCount int      `json:"pageCount"`
	Chunks    []string `json:"chunks"`
}
