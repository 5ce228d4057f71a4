package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/animx/internal/models"
	"github.com/desertthunder/animx/internal/shared"
)

// DefaultListLimit caps [GenerationRepository.List] when no limit is given.
const DefaultListLimit = 50

// GenerationRepository stores finished generations in the generations table.
//
// It satisfies the engine's Recorder hook.
type GenerationRepository struct {
	db *sql.DB
}

// NewGenerationRepository creates a new GenerationRepository with the given database connection
func NewGenerationRepository(db *sql.DB) *GenerationRepository {
	return &GenerationRepository{db: db}
}

// Create inserts rec with the next sequence number.
func (r *GenerationRepository) Create(ctx context.Context, rec *models.GenerationRecord) error {
	if rec.ID == "" {
		rec.ID = shared.GenerateID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = models.Stamp()
	}
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	urls, err := json.Marshal(nonNil(rec.ResultURLs))
	if err != nil {
		return fmt.Errorf("failed to encode result urls: %w", err)
	}

	sequence, err := NextSequence(ctx, r.db, "generations")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	query := `
		INSERT INTO generations (id, sequence, mode, prompt, image_ref, task_id, status, result_urls, error, attempts, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query,
		rec.ID,
		sequence,
		string(rec.Mode),
		rec.Prompt,
		models.TruncateImageRef(rec.ImageRef),
		rec.TaskID,
		rec.Status.String(),
		string(urls),
		rec.Error,
		rec.Attempts,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert generation: %w", err)
	}

	rec.Sequence = sequence
	return nil
}

// Get retrieves a generation by ID
func (r *GenerationRepository) Get(ctx context.Context, id string) (*models.GenerationRecord, error) {
	query := `
		SELECT id, sequence, mode, prompt, image_ref, task_id, status, result_urls, error, attempts, created_at
		FROM generations
		WHERE id = ?
	`

	rec, err := scanGeneration(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: generation %s", shared.ErrRecordNotFound, id)
	}
	return rec, err
}

// List returns the most recent generations first, at most limit of them.
func (r *GenerationRepository) List(ctx context.Context, limit int) ([]*models.GenerationRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := `
		SELECT id, sequence, mode, prompt, image_ref, task_id, status, result_urls, error, attempts, created_at
		FROM generations
		ORDER BY sequence DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query generations: %w", err)
	}
	defer rows.Close()

	var records []*models.GenerationRecord
	for rows.Next() {
		rec, err := scanGeneration(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return records, nil
}

// Count returns the number of stored generations per outcome kind.
func (r *GenerationRepository) Count(ctx context.Context) (map[models.OutcomeKind]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM generations GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count generations: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.OutcomeKind]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		kind, err := models.ParseOutcomeKind(status)
		if err != nil {
			return nil, err
		}
		counts[kind] = n
	}

	return counts, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanGeneration(row scanner) (*models.GenerationRecord, error) {
	var (
		rec       models.GenerationRecord
		mode      string
		status    string
		urls      string
		createdAt time.Time
	)

	err := row.Scan(&rec.ID, &rec.Sequence, &mode, &rec.Prompt, &rec.ImageRef, &rec.TaskID, &status, &urls, &rec.Error, &rec.Attempts, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan generation: %w", err)
	}

	kind, err := models.ParseOutcomeKind(status)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(urls), &rec.ResultURLs); err != nil {
		return nil, fmt.Errorf("failed to decode result urls for %s: %w", rec.ID, err)
	}

	rec.Mode = models.Mode(mode)
	rec.Status = kind
	rec.CreatedAt = createdAt.UTC()
	return &rec, nil
}

func nonNil(urls []string) []string {
	if urls == nil {
		return []string{}
	}
	return urls
}
