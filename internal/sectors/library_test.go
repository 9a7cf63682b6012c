package sectors

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/aktraiser/X-me/internal/domain"
	"github.com/aktraiser/X-me/internal/llm"
	"github.com/aktraiser/X-me/internal/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeDoc(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func newTestLibrary(t *testing.T) (*Library, string) {
	t.Helper()
	dir := t.TempDir()
	catalog, err := LoadCatalog("")
	require.NoError(t, err)

	lib := NewLibrary(LibraryConfig{
		DocumentationDir: dir,
		ChunkSize:        200,
		ChunkOverlap:     20,
		Dimension:        llm.MockDimension,
	}, catalog, vectorstore.NewMemory(), llm.NewMockClient(), zap.NewNop())
	return lib, dir
}

func TestCatalog(t *testing.T) {
	c, err := LoadCatalog("")
	require.NoError(t, err)
	assert.Len(t, c.Sectors(), 15)

	s, ok := c.Find("immobilier")
	require.True(t, ok)
	assert.Equal(t, "Immobilier", s.Name)
	assert.True(t, c.Valid("Commerce alimentaire", "Boulangerie"))
	assert.False(t, c.Valid("Commerce alimentaire", "Garage"))
	assert.False(t, c.Valid("Spatial", ""))

	assert.Equal(t, "Commerce_alimentaire", DirName("Commerce alimentaire"))
}

func TestParseCatalog_Invalid(t *testing.T) {
	_, err := ParseCatalog([]byte("- subsectors: [a]"))
	assert.Error(t, err)
}

func TestLibrary_IngestAndSearch(t *testing.T) {
	lib, dir := newTestLibrary(t)
	writeDoc(t, filepath.Join(dir, "Commerce_alimentaire", "Boulangerie", "marche.md"),
		"Le marché de la boulangerie artisanale représente 11 milliards d'euros.")
	writeDoc(t, filepath.Join(dir, "Commerce_alimentaire", "Caviste", "vins.txt"),
		"Les cavistes indépendants vendent surtout du vin régional.")
	writeDoc(t, filepath.Join(dir, "Commerce_alimentaire", "ignored.docx"), "x")

	resp, err := lib.Ingest(context.Background(), domain.SectorIngestRequest{Sector: "Commerce alimentaire", Subsector: "Boulangerie"})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Files)
	assert.Equal(t, 1, resp.Chunks)

	// re-ingesting replaces instead of duplicating
	_, err = lib.Ingest(context.Background(), domain.SectorIngestRequest{Sector: "Commerce alimentaire", Subsector: "Boulangerie"})
	require.NoError(t, err)
	n, _ := lib.Count(context.Background())
	assert.Equal(t, 1, n)

	docs, err := lib.Search(context.Background(), "marché boulangerie", domain.SectorSelection{Sector: "Commerce alimentaire", Subsector: "Boulangerie"}, 5)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, domain.DocTypeSector, docs[0].Metadata.Type)
	assert.Equal(t, SectorScore, docs[0].Metadata.Score)
	assert.Equal(t, "marche", docs[0].Metadata.Title)
	assert.Equal(t, "Commerce_alimentaire/Boulangerie/marche.md", docs[0].Metadata.Source)
	assert.Equal(t, 1, docs[0].Metadata.PageNumber)

	// subsector without documentation falls back to the sector
	docs, err = lib.Search(context.Background(), "vin", domain.SectorSelection{Sector: "Commerce alimentaire", Subsector: "Primeur"}, 5)
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	docs, err = lib.Search(context.Background(), "vin", domain.SectorSelection{Sector: "Immobilier"}, 5)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestLibrary_IngestRejects(t *testing.T) {
	lib, _ := newTestLibrary(t)

	_, err := lib.Ingest(context.Background(), domain.SectorIngestRequest{Sector: "Spatial"})
	assert.True(t, errors.Is(err, domain.ErrInvalidRequest))

	_, err = lib.Ingest(context.Background(), domain.SectorIngestRequest{Sector: "Immobilier", Subsector: "Garage"})
	assert.True(t, errors.Is(err, domain.ErrInvalidRequest))
}

func TestLibrary_IngestMissingDirectory(t *testing.T) {
	lib, _ := newTestLibrary(t)
	_, err := lib.Ingest(context.Background(), domain.SectorIngestRequest{Sector: "Immobilier"})
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestLibrary_CanonicalNames(t *testing.T) {
	lib, dir := newTestLibrary(t)
	writeDoc(t, filepath.Join(dir, "Commerce_alimentaire", "Boulangerie", "marche.md"),
		"Le marché de la boulangerie artisanale représente 11 milliards d'euros.")
	writeDoc(t, filepath.Join(dir, "Commerce_alimentaire", "Caviste", "vins.md"),
		"Les cavistes indépendants vendent surtout du vin régional.")
	ctx := context.Background()

	resp, err := lib.Ingest(ctx, domain.SectorIngestRequest{Sector: "commerce alimentaire", Subsector: "boulangerie"})
	require.NoError(t, err)
	assert.Equal(t, "Commerce alimentaire", resp.Sector)
	assert.Equal(t, 1, resp.Files)

	// files under a subsector directory are tagged with it
	_, err = lib.Ingest(ctx, domain.SectorIngestRequest{Sector: "Commerce alimentaire", Path: "Commerce_alimentaire/Caviste"})
	require.NoError(t, err)

	docs, err := lib.Search(ctx, "boulangerie", domain.SectorSelection{Sector: "Commerce alimentaire", Subsector: "Boulangerie"}, 5)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Boulangerie", docs[0].Metadata.Subsector)
	assert.Equal(t, "Commerce_alimentaire/Boulangerie/marche.md", docs[0].Metadata.Source)

	docs, err = lib.Search(ctx, "vin", domain.SectorSelection{Sector: "COMMERCE ALIMENTAIRE", Subsector: "caviste"}, 5)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Caviste", docs[0].Metadata.Subsector)
	assert.Equal(t, "Commerce alimentaire", docs[0].Metadata.Sector)

	docs, err = lib.Search(ctx, "vin", domain.SectorSelection{Sector: "commerce alimentaire"}, 5)
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	docs, err = lib.Search(ctx, "vin", domain.SectorSelection{Sector: "Spatial"}, 5)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestCatalog_Resolve(t *testing.T) {
	c, err := LoadCatalog("")
	require.NoError(t, err)

	sel, ok := c.Resolve("commerce alimentaire", " pâtisserie artisanale ")
	require.True(t, ok)
	assert.Equal(t, domain.SectorSelection{Sector: "Commerce alimentaire", Subsector: "Pâtisserie artisanale"}, sel)

	sel, ok = c.Resolve("Commerce alimentaire", "Garage")
	assert.False(t, ok)
	assert.Equal(t, "Commerce alimentaire", sel.Sector)

	_, ok = c.Resolve("Spatial", "")
	assert.False(t, ok)
}
