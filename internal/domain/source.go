package domain

// Document types
const (
	DocTypeSector   = "sector"
	DocTypeUploaded = "uploaded"
	DocTypeExpert   = "expert"
	DocTypeWeb      = "web"
	DocTypeLink     = "link"
)

// Document is a piece of retrieved context before normalisation
type Document struct {
	PageContent string
	Metadata    DocumentMetadata
	Embedding   []float64
}

// DocumentMetadata describes where a document comes from
type DocumentMetadata struct {
	Type              string
	Title             string
	URL               string
	Source            string
	FileID            string
	PageNumber        int
	ChunkIndex        int
	TotalChunks       int
	Sector            string
	Subsector         string
	SearchText        string
	Score             float64
	ImageSrc          string
	Expert            *Expert
	IllustrationImage string
	ImageTitle        string
}

// Source is a citation as consumed by the chat UI
type Source struct {
	PageContent string         `json:"pageContent"`
	Metadata    SourceMetadata `json:"metadata"`
}

// SourceMetadata is the UI-facing metadata of a source
type SourceMetadata struct {
	Title             string  `json:"title"`
	Type              string  `json:"type"`
	URL               string  `json:"url,omitempty"`
	Source            string  `json:"source,omitempty"`
	PageNumber        int     `json:"pageNumber"`
	DisplayDomain     string  `json:"displayDomain,omitempty"`
	SearchText        string  `json:"searchText"`
	ExpertData        *Expert `json:"expertData,omitempty"`
	IllustrationImage string  `json:"illustrationImage,omitempty"`
	ImageTitle        string  `json:"imageTitle,omitempty"`
	Favicon           string  `json:"favicon,omitempty"`
	LinkText          string  `json:"linkText"`
	ExpertName        string  `json:"expertName,omitempty"`
	FileID            string  `json:"fileId,omitempty"`
	Page              int     `json:"page"`
	IsFile            bool    `json:"isFile"`
	Score             float64 `json:"score,omitempty"`
}

// Image is an illustration found by image search
type Image struct {
	ImgSrc string `json:"img_src"`
	URL    string `json:"url"`
	Title  string `json:"title"`
}
