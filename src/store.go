package src

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned by lookups for identifiers with no row.
var ErrNotFound = errors.New("not found")

// SandpackFile wraps file content the way the preview frontend consumes
// it.
type SandpackFile struct {
	Code string `json:"code"`
}

// Snapshot is the denormalized project state stored alongside a project
// row, holding the current files plus the stage outputs of the run that
// produced them.
type Snapshot struct {
	Files             map[string]SandpackFile `json:"files"`
	PlanSnapshot      string                  `json:"plan_snapshot"`
	ArchitectSnapshot string                  `json:"architect_snapshot"`
	DiagramSnapshot   string                  `json:"diagram_snapshot"`
	ReviewSnapshot    string                  `json:"review_snapshot"`
	Prompt            string                  `json:"prompt"`
	LastFollowup      string                  `json:"last_followup,omitempty"`
	FollowupSummary   string                  `json:"followup_summary,omitempty"`
}

// SandpackFiles converts a flat file set into snapshot form.
func SandpackFiles(files FileSet) map[string]SandpackFile {
	out := make(map[string]SandpackFile, len(files))
	for path, content := range files {
		out[path] = SandpackFile{Code: content}
	}
	return out
}

// FilesFromSnapshot flattens snapshot files back into a file set.
func FilesFromSnapshot(s *Snapshot) FileSet {
	if s == nil {
		return FileSet{}
	}
	out := make(FileSet, len(s.Files))
	for path, f := range s.Files {
		out[path] = f.Code
	}
	return out
}

// Project is one saved generation project.
type Project struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	CodeSnapshot *Snapshot `json:"code_snapshot,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Version is one immutable run record under a project. Files holds the
// flat path to content mapping of that run.
type Version struct {
	ID                string    `json:"id"`
	ProjectID         string    `json:"project_id"`
	VersionNumber     int       `json:"version_number"`
	Prompt            string    `json:"prompt"`
	Files             FileSet   `json:"code_snapshot"`
	PlanSnapshot      string    `json:"plan_snapshot"`
	ArchitectSnapshot string    `json:"architect_snapshot"`
	DiagramSnapshot   string    `json:"diagram_snapshot"`
	ReviewSnapshot    string    `json:"review_snapshot"`
	Summary           string    `json:"summary"`
	CreatedAt         time.Time `json:"created_at"`
}

// SaveProjectParams is the payload of an explicit project save (as
// opposed to the pipeline's automatic persistence).
type SaveProjectParams struct {
	ProjectID   string
	UserID      string
	Name        string
	Description string
	Snapshot    *Snapshot
}

// Store is the persistence collaborator for projects and versions. All
// writes are idempotent upserts; the pipeline treats every failure as
// non-fatal.
type Store interface {
	CreateProject(ctx context.Context, userID, name, description string) (string, error)
	SaveProject(ctx context.Context, p SaveProjectParams) (string, error)
	GetProject(ctx context.Context, projectID string) (*Project, error)
	GetProjectWithCode(ctx context.Context, projectID string) (*Project, error)
	ListUserProjects(ctx context.Context, userID string) ([]Project, error)
	DeleteProject(ctx context.Context, projectID string) error
	UpdateProjectSnapshots(ctx context.Context, projectID string, snapshot Snapshot) error
	SaveVersion(ctx context.Context, projectID string, v Version) error
	LatestVersion(ctx context.Context, projectID string) (*Version, error)
	ProjectVersions(ctx context.Context, projectID string) ([]Version, error)
	GetVersion(ctx context.Context, versionID string) (*Version, error)
}

// PGStore implements Store on PostgreSQL.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) CreateProject(ctx context.Context, userID, name, description string) (string, error) {
	id := uuid.NewString()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO projects (id, user_id, name, description, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, now(), now())`,
		id, userID, name, description)
	if err != nil {
		return "", WrapErr(ErrCodePersistence, err, "create project")
	}
	return id, nil
}

func (s *PGStore) SaveProject(ctx context.Context, p SaveProjectParams) (string, error) {
	snapshotJSON, err := marshalSnapshot(p.Snapshot)
	if err != nil {
		return "", err
	}

	if p.ProjectID != "" {
		_, err := s.pool.Exec(ctx,
			`UPDATE projects
			 SET name = $2, description = $3,
			     code_snapshot = COALESCE($4, code_snapshot),
			     updated_at = now()
			 WHERE id = $1`,
			p.ProjectID, p.Name, p.Description, snapshotJSON)
		if err != nil {
			return "", WrapErr(ErrCodePersistence, err, "update project %s", p.ProjectID)
		}
		return p.ProjectID, nil
	}

	id := uuid.NewString()
	_, err = s.pool.Exec(ctx,
		`INSERT INTO projects (id, user_id, name, description, code_snapshot, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, now(), now())`,
		id, p.UserID, p.Name, p.Description, snapshotJSON)
	if err != nil {
		return "", WrapErr(ErrCodePersistence, err, "insert project")
	}
	return id, nil
}

func (s *PGStore) GetProject(ctx context.Context, projectID string) (*Project, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, user_id, name, description, code_snapshot, created_at, updated_at
		 FROM projects WHERE id = $1`, projectID)
	return scanProject(row)
}

// GetProjectWithCode is GetProject under another name; the snapshot
// column is always selected.
func (s *PGStore) GetProjectWithCode(ctx context.Context, projectID string) (*Project, error) {
	return s.GetProject(ctx, projectID)
}

func (s *PGStore) ListUserProjects(ctx context.Context, userID string) ([]Project, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, name, description, code_snapshot, created_at, updated_at
		 FROM projects WHERE user_id = $1 ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, WrapErr(ErrCodePersistence, err, "list projects for user %s", userID)
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, *p)
	}
	return projects, rows.Err()
}

func (s *PGStore) DeleteProject(ctx context.Context, projectID string) error {
	// Versions first so a partial failure cannot strand orphan rows.
	if _, err := s.pool.Exec(ctx, `DELETE FROM versions WHERE project_id = $1`, projectID); err != nil {
		return WrapErr(ErrCodePersistence, err, "delete versions of project %s", projectID)
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM projects WHERE id = $1`, projectID); err != nil {
		return WrapErr(ErrCodePersistence, err, "delete project %s", projectID)
	}
	return nil
}

func (s *PGStore) UpdateProjectSnapshots(ctx context.Context, projectID string, snapshot Snapshot) error {
	snapshotJSON, err := marshalSnapshot(&snapshot)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`UPDATE projects SET code_snapshot = $2, updated_at = now() WHERE id = $1`,
		projectID, snapshotJSON)
	if err != nil {
		return WrapErr(ErrCodePersistence, err, "update snapshots of project %s", projectID)
	}
	return nil
}

func (s *PGStore) SaveVersion(ctx context.Context, projectID string, v Version) error {
	// Follow-up versions carry no plan or architecture of their own;
	// inherit them from the latest version so they do not disappear from
	// the history view.
	if v.PlanSnapshot == "" || v.ArchitectSnapshot == "" {
		if latest, err := s.LatestVersion(ctx, projectID); err == nil && latest != nil {
			if v.PlanSnapshot == "" {
				v.PlanSnapshot = latest.PlanSnapshot
			}
			if v.ArchitectSnapshot == "" {
				v.ArchitectSnapshot = latest.ArchitectSnapshot
			}
			if v.DiagramSnapshot == "" {
				v.DiagramSnapshot = latest.DiagramSnapshot
			}
			if v.ReviewSnapshot == "" {
				v.ReviewSnapshot = latest.ReviewSnapshot
			}
		}
	}

	filesJSON, err := json.Marshal(v.Files)
	if err != nil {
		return WrapErr(ErrCodePersistence, err, "encode version files")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO versions (id, project_id, version_number, prompt, code_snapshot,
		                       plan_snapshot, architect_snapshot, diagram_snapshot,
		                       review_snapshot, summary, created_at)
		 VALUES ($1, $2,
		         (SELECT COALESCE(MAX(version_number), 0) + 1 FROM versions WHERE project_id = $2),
		         $3, $4, $5, $6, $7, $8, $9, now())`,
		uuid.NewString(), projectID, v.Prompt, filesJSON,
		v.PlanSnapshot, v.ArchitectSnapshot, v.DiagramSnapshot, v.ReviewSnapshot, v.Summary)
	if err != nil {
		return WrapErr(ErrCodePersistence, err, "insert version for project %s", projectID)
	}

	_, err = s.pool.Exec(ctx, `UPDATE projects SET updated_at = now() WHERE id = $1`, projectID)
	if err != nil {
		return WrapErr(ErrCodePersistence, err, "touch project %s", projectID)
	}
	return nil
}

func (s *PGStore) LatestVersion(ctx context.Context, projectID string) (*Version, error) {
	row := s.pool.QueryRow(ctx,
		versionSelect+` WHERE project_id = $1 ORDER BY version_number DESC LIMIT 1`, projectID)
	return scanVersion(row)
}

func (s *PGStore) ProjectVersions(ctx context.Context, projectID string) ([]Version, error) {
	rows, err := s.pool.Query(ctx,
		versionSelect+` WHERE project_id = $1 ORDER BY version_number DESC`, projectID)
	if err != nil {
		return nil, WrapErr(ErrCodePersistence, err, "list versions of project %s", projectID)
	}
	defer rows.Close()

	var versions []Version
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, *v)
	}
	return versions, rows.Err()
}

func (s *PGStore) GetVersion(ctx context.Context, versionID string) (*Version, error) {
	row := s.pool.QueryRow(ctx, versionSelect+` WHERE id = $1`, versionID)
	return scanVersion(row)
}

const versionSelect = `SELECT id, project_id, version_number, prompt, code_snapshot,
       plan_snapshot, architect_snapshot, diagram_snapshot, review_snapshot, summary, created_at
FROM versions`

func marshalSnapshot(s *Snapshot) ([]byte, error) {
	if s == nil {
		return nil, nil
	}
	out, err := json.Marshal(s)
	if err != nil {
		return nil, WrapErr(ErrCodePersistence, err, "encode snapshot")
	}
	return out, nil
}

func scanProject(row pgx.Row) (*Project, error) {
	var p Project
	var snapshotJSON []byte
	err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.Description, &snapshotJSON, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, WrapErr(ErrCodePersistence, err, "scan project")
	}
	if len(snapshotJSON) > 0 {
		p.CodeSnapshot = &Snapshot{}
		if err := json.Unmarshal(snapshotJSON, p.CodeSnapshot); err != nil {
			return nil, WrapErr(ErrCodePersistence, err, "decode snapshot of project %s", p.ID)
		}
	}
	return &p, nil
}

func scanVersion(row pgx.Row) (*Version, error) {
	var v Version
	var filesJSON []byte
	err := row.Scan(&v.ID, &v.ProjectID, &v.VersionNumber, &v.Prompt, &filesJSON,
		&v.PlanSnapshot, &v.ArchitectSnapshot, &v.DiagramSnapshot, &v.ReviewSnapshot, &v.Summary, &v.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, WrapErr(ErrCodePersistence, err, "scan version")
	}
	if len(filesJSON) > 0 {
		if err := json.Unmarshal(filesJSON, &v.Files); err != nil {
			return nil, WrapErr(ErrCodePersistence, err, "decode files of version %s", v.ID)
		}
	}
	return &v, nil
}
