// Package sectors holds the sector catalog and the sector documentation
// library indexed in the vector store.
package sectors

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/aktraiser/X-me/internal/domain"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Catalog lists the sectors and subsectors a user can pick
type Catalog struct {
	sectors []domain.Sector
}

// LoadCatalog reads the catalog at path, or the built-in one when path is empty
func LoadCatalog(path string) (*Catalog, error) {
	data := defaultCatalog
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read sector catalog: %w", err)
		}
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes a YAML list of sectors
func ParseCatalog(data []byte) (*Catalog, error) {
	var sectors []domain.Sector
	if err := yaml.Unmarshal(data, &sectors); err != nil {
		return nil, fmt.Errorf("parse sector catalog: %w", err)
	}
	for i, s := range sectors {
		if strings.TrimSpace(s.Name) == "" {
			return nil, fmt.Errorf("sector %d has no name", i)
		}
	}
	return &Catalog{sectors: sectors}, nil
}

// Sectors returns all sectors
func (c *Catalog) Sectors() []domain.Sector {
	return c.sectors
}

// Find returns the sector with the given name, ignoring case
func (c *Catalog) Find(name string) (domain.Sector, bool) {
	for _, s := range c.sectors {
		if strings.EqualFold(s.Name, strings.TrimSpace(name)) {
			return s, true
		}
	}
	return domain.Sector{}, false
}

// Valid reports whether sector exists and subsector, when set, belongs to it
func (c *Catalog) Valid(sector, subsector string) bool {
	_, ok := c.Resolve(sector, subsector)
	return ok
}

// Resolve returns the selection spelled as in the catalog. An empty subsector
// stays empty.
func (c *Catalog) Resolve(sector, subsector string) (domain.SectorSelection, bool) {
	s, ok := c.Find(sector)
	if !ok {
		return domain.SectorSelection{}, false
	}
	sel := domain.SectorSelection{Sector: s.Name}
	subsector = strings.TrimSpace(subsector)
	if subsector == "" {
		return sel, true
	}
	for _, sub := range s.Subsectors {
		if strings.EqualFold(sub, subsector) {
			sel.Subsector = sub
			return sel, true
		}
	}
	return sel, false
}

// subsectorForDir returns the subsector of s whose directory is dir
func subsectorForDir(s domain.Sector, dir string) string {
	for _, sub := range s.Subsectors {
		if strings.EqualFold(DirName(sub), dir) {
			return sub
		}
	}
	return ""
}

// DirName returns the documentation directory name of a sector or subsector
func DirName(name string) string {
	return strings.Join(strings.Fields(name), "_")
}
