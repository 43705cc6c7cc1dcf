package recipe

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"recipic/internal/llm"
)

// Generation is a cached provider completion and the recipes parsed from it.
type Generation struct {
	Hash       string         `json:"hash" db:"hash"`
	MealType   MealType       `json:"mealType" db:"meal_type"`
	Text       string         `json:"text" db:"text"`
	HasImage   bool           `json:"hasImage" db:"has_image"`
	Recipes    []Recipe       `json:"recipes" db:"-"`
	Completion llm.Completion `json:"completion" db:"-"`
	CreatedAt  time.Time      `json:"createdAt" db:"created_at"`
}

// generationRow is the database shape of a Generation.
type generationRow struct {
	Hash       string    `db:"hash"`
	MealType   string    `db:"meal_type"`
	Text       string    `db:"text"`
	HasImage   bool      `db:"has_image"`
	Recipes    []byte    `db:"recipes"`
	Completion []byte    `db:"completion"`
	CreatedAt  time.Time `db:"created_at"`
}

const generationColumns = "hash, meal_type, text, has_image, recipes, completion, created_at"

// PostgresStore keeps generations in PostgreSQL.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(dataSourceName string) (*PostgresStore, error) {
	db, err := sqlx.Connect("postgres", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS generations (
		hash TEXT PRIMARY KEY,
		meal_type TEXT NOT NULL,
		text TEXT NOT NULL,
		has_image BOOLEAN NOT NULL DEFAULT FALSE,
		recipes JSONB NOT NULL,
		completion JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS generations_meal_type_idx ON generations (meal_type);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create generations table: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// GetGeneration retrieves a generation by its request hash. It returns nil
// when nothing is cached.
func (s *PostgresStore) GetGeneration(ctx context.Context, hash string) (*Generation, error) {
	var row generationRow
	err := s.db.GetContext(ctx, &row, "SELECT "+generationColumns+" FROM generations WHERE hash = $1", hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get generation by hash: %w", err)
	}
	return row.generation()
}

// SaveGeneration saves a generation, replacing any previous one with the same hash.
func (s *PostgresStore) SaveGeneration(ctx context.Context, g *Generation) error {
	recipesJSON, err := json.Marshal(g.Recipes)
	if err != nil {
		return fmt.Errorf("failed to marshal recipes: %w", err)
	}
	completionJSON, err := json.Marshal(g.Completion)
	if err != nil {
		return fmt.Errorf("failed to marshal completion: %w", err)
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO generations ("+generationColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7) ON CONFLICT (hash) DO UPDATE SET meal_type = $2, text = $3, has_image = $4, recipes = $5, completion = $6, created_at = $7",
		g.Hash,
		string(g.MealType),
		g.Text,
		g.HasImage,
		recipesJSON,
		completionJSON,
		g.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save generation: %w", err)
	}
	return nil
}

// ListGenerations returns cached generations, newest first, optionally
// filtered by meal type.
func (s *PostgresStore) ListGenerations(ctx context.Context, mealType MealType) ([]*Generation, error) {
	query := "SELECT " + generationColumns + " FROM generations"
	var args []interface{}
	if mealType != "" {
		query += " WHERE meal_type = $1"
		args = append(args, string(mealType))
	}
	query += " ORDER BY created_at DESC LIMIT 100"

	var rows []generationRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list generations: %w", err)
	}

	generations := make([]*Generation, 0, len(rows))
	for _, row := range rows {
		g, err := row.generation()
		if err != nil {
			return nil, err
		}
		generations = append(generations, g)
	}
	return generations, nil
}

func (row generationRow) generation() (*Generation, error) {
	g := &Generation{
		Hash:      row.Hash,
		MealType:  MealType(row.MealType),
		Text:      row.Text,
		HasImage:  row.HasImage,
		CreatedAt: row.CreatedAt,
	}
	if err := json.Unmarshal(row.Recipes, &g.Recipes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal recipes: %w", err)
	}
	if err := json.Unmarshal(row.Completion, &g.Completion); err != nil {
		return nil, fmt.Errorf("failed to unmarshal completion: %w", err)
	}
	return g, nil
}
