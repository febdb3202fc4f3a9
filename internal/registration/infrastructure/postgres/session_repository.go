package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	json "github.com/goccy/go-json"

	registration "xrgi-portal/internal/registration/domain"
)

// SessionRepository persists registration sessions. The draft and profile
// travel as one JSON document; step, flow and status are columns so
// dashboards can query them without unpacking the document.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository constructs a repository.
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

type sessionDocument struct {
	Profile registration.CustomerProfile `json:"profile"`
	Draft   registration.FacilityDraft   `json:"draft"`
}

// Create inserts a new session.
func (r *SessionRepository) Create(ctx context.Context, session *registration.Session) error {
	if r == nil || r.db == nil {
		return errors.New("session repo: nil db")
	}
	if session == nil || session.ID == "" {
		return registration.ErrNilSession
	}
	document, err := json.Marshal(sessionDocument{Profile: session.Profile, Draft: session.Draft})
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO registration_sessions (
	id, user_id, flow, step, status, submitting, submitting_at, document, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		session.ID, session.UserID, string(session.Flow), session.Step, session.Status,
		session.Submitting, session.SubmittingAt, document, session.CreatedAt, session.UpdatedAt)
	return err
}

// Get loads a session by id.
func (r *SessionRepository) Get(ctx context.Context, id string) (*registration.Session, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("session repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT id, user_id, flow, step, status, submitting, submitting_at, document, created_at, updated_at
FROM registration_sessions
WHERE id = $1
LIMIT 1`, id)
	return scanSession(row)
}

// Save overwrites an existing session.
func (r *SessionRepository) Save(ctx context.Context, session *registration.Session) error {
	if r == nil || r.db == nil {
		return errors.New("session repo: nil db")
	}
	if session == nil || session.ID == "" {
		return registration.ErrNilSession
	}
	document, err := json.Marshal(sessionDocument{Profile: session.Profile, Draft: session.Draft})
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
UPDATE registration_sessions
SET step = $1, status = $2, submitting = $3, submitting_at = $4, document = $5, updated_at = $6
WHERE id = $7`,
		session.Step, session.Status, session.Submitting, session.SubmittingAt, document, session.UpdatedAt, session.ID)
	return err
}

// Delete removes a session.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	if r == nil || r.db == nil {
		return errors.New("session repo: nil db")
	}
	_, err := r.db.ExecContext(ctx, `DELETE FROM registration_sessions WHERE id = $1`, id)
	return err
}

// ListByUser returns a user's sessions, most recently touched first.
func (r *SessionRepository) ListByUser(ctx context.Context, userID string) ([]*registration.Session, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("session repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, user_id, flow, step, status, submitting, submitting_at, document, created_at, updated_at
FROM registration_sessions
WHERE user_id = $1
ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*registration.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		if session != nil {
			result = append(result, session)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*registration.Session, error) {
	var session registration.Session
	var flow string
	var document []byte
	var submittingAt, createdAt, updatedAt time.Time
	err := row.Scan(&session.ID, &session.UserID, &flow, &session.Step, &session.Status,
		&session.Submitting, &submittingAt, &document, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	var doc sessionDocument
	if err := json.Unmarshal(document, &doc); err != nil {
		return nil, err
	}
	session.Flow = registration.Flow(flow)
	session.Profile = doc.Profile
	session.Draft = doc.Draft
	if !submittingAt.IsZero() {
		session.SubmittingAt = submittingAt.UTC()
	}
	session.CreatedAt = createdAt.UTC()
	session.UpdatedAt = updatedAt.UTC()
	return &session, nil
}
