package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/DukeRupert/labsnap/internal/domain"
	"github.com/google/uuid"
)

// PostgresHistory is a HistoryStore backed by the chemical_problems table.
type PostgresHistory struct {
	db *sql.DB
}

func NewPostgresHistory(db *sql.DB) *PostgresHistory {
	return &PostgresHistory{db: db}
}

const problemColumns = `id, user_id, kind, problem_text, problem_image_key, topic, difficulty, solution, is_favorite, created_at`

func (s *PostgresHistory) Append(ctx context.Context, p *domain.Problem) error {
	solution, err := json.Marshal(p.Solution)
	if err != nil {
		return fmt.Errorf("marshal solution: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO chemical_problems (`+problemColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.ID, p.UserID, string(p.Kind), p.ProblemText, nullString(p.ImageKey),
		p.Topic, string(p.Difficulty), solution, p.IsFavorite, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert problem: %w", err)
	}
	return nil
}

func (s *PostgresHistory) List(ctx context.Context, userID string) ([]domain.Problem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+problemColumns+` FROM chemical_problems
		WHERE user_id = $1
		ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list problems: %w", err)
	}
	defer rows.Close()

	problems := make([]domain.Problem, 0)
	for rows.Next() {
		p, err := scanProblem(rows)
		if err != nil {
			return nil, err
		}
		problems = append(problems, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list problems: %w", err)
	}
	return problems, nil
}

func (s *PostgresHistory) Get(ctx context.Context, userID string, id uuid.UUID) (*domain.Problem, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+problemColumns+` FROM chemical_problems
		WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	p, err := scanProblem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

func (s *PostgresHistory) SetFavorite(ctx context.Context, userID string, id uuid.UUID, favorite bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE chemical_problems SET is_favorite = $1 WHERE id = $2 AND user_id = $3`,
		favorite, id, userID,
	)
	if err != nil {
		return fmt.Errorf("update favorite: %w", err)
	}
	return expectOneRow(res)
}

func (s *PostgresHistory) Delete(ctx context.Context, userID string, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM chemical_problems WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("delete problem: %w", err)
	}
	return expectOneRow(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProblem(row rowScanner) (*domain.Problem, error) {
	var (
		p          domain.Problem
		kind       string
		difficulty string
		imageKey   sql.NullString
		solution   []byte
	)
	err := row.Scan(&p.ID, &p.UserID, &kind, &p.ProblemText, &imageKey,
		&p.Topic, &difficulty, &solution, &p.IsFavorite, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan problem: %w", err)
	}

	p.Kind = domain.Kind(kind)
	p.Difficulty = domain.Difficulty(difficulty)
	p.ImageKey = imageKey.String
	if len(solution) > 0 {
		if err := json.Unmarshal(solution, &p.Solution); err != nil {
			return nil, fmt.Errorf("decode solution for %s: %w", p.ID, err)
		}
	}
	return &p, nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
