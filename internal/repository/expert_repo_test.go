package repository

import (
	"errors"
	"testing"

	"github.com/aktraiser/X-me/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func seedExperts(t *testing.T, repo *ExpertRepository) {
	t.Helper()
	experts := []*domain.Expert{
		{FirstName: "Claire", LastName: "Martin", Specialty: "Expert-comptable", City: "Lyon", Rate: 120, Expertises: "fiscalité, création d'entreprise"},
		{FirstName: "Hugo", LastName: "Bernard", Specialty: "Juriste", City: "Paris", Rate: 90, Expertises: "droit commercial, bail"},
		{FirstName: "Léa", LastName: "Petit", Specialty: "Consultante marketing", City: "Lyon", Rate: 80, Biography: "Accompagne les commerces alimentaires"},
	}
	for _, e := range experts {
		require.NoError(t, repo.Create(e))
	}
}

func TestExpertRepository_Search(t *testing.T) {
	repo := NewExpertRepository(newTestDB(t))
	seedExperts(t, repo)

	found, err := repo.Search(domain.ExpertQuery{Terms: []string{"fiscalité"}})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Claire Martin", found[0].FullName())

	found, err = repo.Search(domain.ExpertQuery{City: "lyon"})
	require.NoError(t, err)
	require.Len(t, found, 2)
	// cheapest first
	assert.Equal(t, "Petit", found[0].LastName)

	found, err = repo.Search(domain.ExpertQuery{Terms: []string{"bail", "commerces"}, City: "Paris"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Bernard", found[0].LastName)

	found, err = repo.Search(domain.ExpertQuery{Terms: []string{"100%"}})
	require.NoError(t, err)
	assert.Empty(t, found)

	found, err = repo.Search(domain.ExpertQuery{})
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestExpertRepository_GetDelete(t *testing.T) {
	repo := NewExpertRepository(newTestDB(t))
	expert := &domain.Expert{FirstName: "A", LastName: "B", Specialty: "C", Services: []byte(`["audit"]`)}
	require.NoError(t, repo.Create(expert))

	got, err := repo.Get(expert.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.JSONEq(t, `["audit"]`, string(got.Services))

	require.NoError(t, repo.Delete(expert.ID))
	assert.True(t, errors.Is(repo.Delete(expert.ID), domain.ErrNotFound))

	count, err := repo.Count()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestExpertRepository_ImportXLSX(t *testing.T) {
	repo := NewExpertRepository(newTestDB(t))

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"Prénom", "Nom", "Spécialité", "Ville", "Tarif", "Services"},
		{"Claire", "Martin", "Expert-comptable", "Lyon", "120,5", "bilan;audit"},
		{"", "", "", "", "", ""},
		{"Hugo", "Bernard", "", "Paris", "90", ""},
		{"Léa", "Petit", "Marketing", "Lyon", "80", `["plan media"]`},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	result, err := repo.ImportXLSX(buf)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Imported)
	assert.Equal(t, 2, result.Skipped)
	assert.Len(t, result.Errors, 1)

	experts, err := repo.List(10, 0)
	require.NoError(t, err)
	require.Len(t, experts, 2)
	assert.Equal(t, "Martin", experts[0].LastName)
	assert.InDelta(t, 120.5, experts[0].Rate, 1e-9)
	assert.JSONEq(t, `["bilan","audit"]`, string(experts[0].Services))
}

func TestExpertRepository_ImportMissingColumns(t *testing.T) {
	repo := NewExpertRepository(newTestDB(t))

	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow(f.GetSheetName(0), "A1", &[]any{"Nom", "Ville"}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	_, err = repo.ImportXLSX(buf)
	assert.True(t, errors.Is(err, domain.ErrInvalidRequest))
}
