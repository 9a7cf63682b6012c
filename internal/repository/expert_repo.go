package repository

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/aktraiser/X-me/internal/domain"
	"github.com/google/uuid"
)

const expertColumns = `id, prenom, nom, specialite, ville, tarif, expertises, services, biographie, url, image_url, created_at`

// ExpertRepository handles the expert directory
type ExpertRepository struct {
	db *DB
}

// NewExpertRepository creates a new expert repository
func NewExpertRepository(db *DB) *ExpertRepository {
	return &ExpertRepository{db: db}
}

// Create inserts an expert
func (r *ExpertRepository) Create(expert *domain.Expert) error {
	if expert.ID == "" {
		expert.ID = uuid.New().String()
	}
	expert.CreatedAt = time.Now()

	var services sql.NullString
	if len(expert.Services) > 0 {
		services = sql.NullString{String: string(expert.Services), Valid: true}
	}

	_, err := r.db.Exec(`
		INSERT INTO experts (`+expertColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, expert.ID, expert.FirstName, expert.LastName, expert.Specialty, expert.City,
		expert.Rate, expert.Expertises, services, expert.Biography, expert.URL,
		expert.ImageURL, expert.CreatedAt)

	return err
}

// Get retrieves an expert by ID
func (r *ExpertRepository) Get(id string) (*domain.Expert, error) {
	row := r.db.QueryRow(`SELECT `+expertColumns+` FROM experts WHERE id = ?`, id)
	expert, err := scanExpert(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return expert, err
}

// List retrieves experts ordered by name
func (r *ExpertRepository) List(limit, offset int) ([]*domain.Expert, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(`
		SELECT `+expertColumns+` FROM experts
		ORDER BY nom, prenom LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanExperts(rows)
}

// Search finds experts whose specialty, expertises, biography or city match
// any of the terms. When a city is given it must match.
func (r *ExpertRepository) Search(q domain.ExpertQuery) ([]*domain.Expert, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 3
	}

	var where []string
	var args []any

	var termClauses []string
	for _, term := range q.Terms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		like := "%" + escapeLike(strings.ToLower(term)) + "%"
		termClauses = append(termClauses, `(LOWER(specialite) LIKE ? ESCAPE '\' OR LOWER(expertises) LIKE ? ESCAPE '\' OR LOWER(biographie) LIKE ? ESCAPE '\')`)
		args = append(args, like, like, like)
	}
	if len(termClauses) > 0 {
		where = append(where, "("+strings.Join(termClauses, " OR ")+")")
	}
	if city := strings.TrimSpace(q.City); city != "" {
		where = append(where, `LOWER(ville) LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(strings.ToLower(city))+"%")
	}
	if len(where) == 0 {
		return []*domain.Expert{}, nil
	}

	args = append(args, limit)
	rows, err := r.db.Query(`
		SELECT `+expertColumns+` FROM experts
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY tarif ASC, nom ASC LIMIT ?
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("search experts: %w", err)
	}
	defer rows.Close()
	return scanExperts(rows)
}

// Delete deletes an expert
func (r *ExpertRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM experts WHERE id = ?`, id)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("expert %s: %w", id, domain.ErrNotFound)
	}

	return nil
}

// Count returns the number of experts
func (r *ExpertRepository) Count() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM experts`).Scan(&count)
	return count, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpert(row rowScanner) (*domain.Expert, error) {
	expert := &domain.Expert{}
	var ville, expertises, services, bio, url, image sql.NullString
	if err := row.Scan(&expert.ID, &expert.FirstName, &expert.LastName, &expert.Specialty,
		&ville, &expert.Rate, &expertises, &services, &bio, &url, &image, &expert.CreatedAt); err != nil {
		return nil, err
	}
	expert.City = ville.String
	expert.Expertises = expertises.String
	expert.Biography = bio.String
	expert.URL = url.String
	expert.ImageURL = image.String
	if services.Valid && services.String != "" {
		expert.Services = []byte(services.String)
	}
	return expert, nil
}

func scanExperts(rows *sql.Rows) ([]*domain.Expert, error) {
	experts := []*domain.Expert{}
	for rows.Next() {
		expert, err := scanExpert(rows)
		if err != nil {
			return nil, err
		}
		experts = append(experts, expert)
	}
	return experts, rows.Err()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
