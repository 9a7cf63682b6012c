package domain

// SectorResearchType marks a structured sector research message
const SectorResearchType = "sector_research"

// Sector is an entry of the sector catalog
type Sector struct {
	Name       string   `json:"name" yaml:"name"`
	Subsectors []string `json:"subsectors,omitempty" yaml:"subsectors"`
}

// SectorSelection is the sector picked by the user
type SectorSelection struct {
	Sector    string `json:"sector"`
	Subsector string `json:"subsector,omitempty"`
}

// SectorResearchMessage is the JSON message sent by the sector picker
type SectorResearchMessage struct {
	Type         string  `json:"type"`
	Sector       string  `json:"sector"`
	Subsector    *string `json:"subsector"`
	Query        string  `json:"query"`
	DocumentPath string  `json:"documentPath,omitempty"`
}

// SectorIngestRequest asks for a documentation directory to be indexed
type SectorIngestRequest struct {
	Sector    string `json:"sector" binding:"required"`
	Subsector string `json:"subsector,omitempty"`
	Path      string `json:"path,omitempty"`
}

// SectorIngestResponse reports an ingestion
type SectorIngestResponse struct {
	Sector string `json:"sector"`
	Files  int    `json:"files"`
	Chunks int    `json:"chunks"`
}
