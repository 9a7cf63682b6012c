package domain

import (
	"encoding/json"
	"time"
)

// Expert is an entry of the expert directory
type Expert struct {
	ID         string          `json:"id_expert"`
	FirstName  string          `json:"prenom"`
	LastName   string          `json:"nom"`
	Specialty  string          `json:"specialite"`
	City       string          `json:"ville"`
	Rate       float64         `json:"tarif"`
	Expertises string          `json:"expertises"`
	Services   json.RawMessage `json:"services,omitempty"`
	Biography  string          `json:"biographie"`
	URL        string          `json:"url,omitempty"`
	ImageURL   string          `json:"image_url,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// FullName returns "prenom nom"
func (e *Expert) FullName() string {
	if e.FirstName == "" {
		return e.LastName
	}
	if e.LastName == "" {
		return e.FirstName
	}
	return e.FirstName + " " + e.LastName
}

// ExpertQuery holds the criteria of an expert lookup
type ExpertQuery struct {
	Terms []string
	City  string
	Limit int
}

// CreateExpertRequest is the request to add an expert
type CreateExpertRequest struct {
	FirstName  string          `json:"prenom" binding:"required"`
	LastName   string          `json:"nom" binding:"required"`
	Specialty  string          `json:"specialite" binding:"required"`
	City       string          `json:"ville"`
	Rate       float64         `json:"tarif"`
	Expertises string          `json:"expertises"`
	Services   json.RawMessage `json:"services,omitempty"`
	Biography  string          `json:"biographie"`
	URL        string          `json:"url,omitempty"`
	ImageURL   string          `json:"image_url,omitempty"`
}

// ImportResult reports an expert import
type ImportResult struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}
