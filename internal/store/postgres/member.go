package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/boardsync/internal/domain"
)

type MemberRepo struct {
	pool *pgxpool.Pool
}

func NewMemberRepo(pool *pgxpool.Pool) *MemberRepo {
	return &MemberRepo{pool: pool}
}

func (r *MemberRepo) Upsert(ctx context.Context, m *domain.Member) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO workspace_members (workspace_id, student_id, display_name, avatar_url)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (workspace_id, student_id)
		 DO UPDATE SET display_name = EXCLUDED.display_name, avatar_url = EXCLUDED.avatar_url
		 RETURNING created_at`,
		m.WorkspaceID, m.StudentID, m.DisplayName, m.AvatarURL,
	).Scan(&m.CreatedAt)
	if err != nil {
		return fmt.Errorf("memberRepo.Upsert: %w", err)
	}

	return nil
}

func (r *MemberRepo) Get(ctx context.Context, workspaceID uuid.UUID, studentID string) (*domain.Member, error) {
	var m domain.Member

	err := r.pool.QueryRow(ctx,
		`SELECT workspace_id, student_id, display_name, avatar_url, created_at
		 FROM workspace_members WHERE workspace_id = $1 AND student_id = $2`,
		workspaceID, studentID,
	).Scan(&m.WorkspaceID, &m.StudentID, &m.DisplayName, &m.AvatarURL, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("memberRepo.Get: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("memberRepo.Get: %w", err)
	}

	return &m, nil
}

func (r *MemberRepo) ListByWorkspace(ctx context.Context, workspaceID uuid.UUID) ([]*domain.Member, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT workspace_id, student_id, display_name, avatar_url, created_at
		 FROM workspace_members WHERE workspace_id = $1
		 ORDER BY display_name, student_id
		 LIMIT 1000`,
		workspaceID,
	)
	if err != nil {
		return nil, fmt.Errorf("memberRepo.ListByWorkspace: %w", err)
	}
	defer rows.Close()

	var out []*domain.Member
	for rows.Next() {
		var m domain.Member
		if err := rows.Scan(&m.WorkspaceID, &m.StudentID, &m.DisplayName, &m.AvatarURL, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("memberRepo.ListByWorkspace: scan: %w", err)
		}
		out = append(out, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("memberRepo.ListByWorkspace: rows: %w", err)
	}

	return out, nil
}
