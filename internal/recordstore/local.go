package recordstore

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/strataworks/sampleflow/pkg/diagnostics"
	"github.com/strataworks/sampleflow/pkg/errors"
	"github.com/strataworks/sampleflow/pkg/samples"
)

// LocalStore is a sqlite-backed record store for offline runs and tests.
// Every version of every sample is retained; Get with a nil version returns
// the latest.
type LocalStore struct {
	db *sql.DB
}

const localSchema = `
CREATE TABLE IF NOT EXISTS samples (
	id      TEXT    NOT NULL,
	version INTEGER NOT NULL,
	name    TEXT    NOT NULL,
	doc     TEXT    NOT NULL,
	PRIMARY KEY (id, version)
);
CREATE INDEX IF NOT EXISTS samples_name ON samples (name);
`

// OpenLocal opens (creating if needed) a local store at the given path.
// ":memory:" gives an ephemeral store.
func OpenLocal(path string) (*LocalStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.WrapIO("open", path, err)
	}
	if _, err := db.Exec(localSchema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "initializing local store schema")
	}
	return &LocalStore{db: db}, nil
}

// Close releases the underlying database.
func (s *LocalStore) Close() error {
	return s.db.Close()
}

// Create persists a sample version.
func (s *LocalStore) Create(ctx context.Context, sample *samples.Sample, priorID string, priorVersion *int) (samples.Ref, error) {
	doc, err := json.Marshal(sample)
	if err != nil {
		return samples.Ref{}, errors.Wrap(err, "encoding sample")
	}

	id := priorID
	version := 1
	if id == "" {
		id = uuid.NewString()
	} else {
		var max sql.NullInt64
		err := s.db.QueryRowContext(ctx, `SELECT MAX(version) FROM samples WHERE id = ?`, id).Scan(&max)
		if err != nil {
			return samples.Ref{}, errors.Wrap(err, "reading prior version")
		}
		if !max.Valid {
			return samples.Ref{}, errors.NewNotFoundError("sample", id)
		}
		version = int(max.Int64) + 1
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO samples (id, version, name, doc) VALUES (?, ?, ?, ?)`,
		id, version, sample.Name, string(doc))
	if err != nil {
		return samples.Ref{}, errors.Wrap(err, "saving sample")
	}
	return samples.Ref{ID: id, Name: sample.Name, Version: version}, nil
}

// Get fetches a sample by record ID; a nil version fetches the latest.
func (s *LocalStore) Get(ctx context.Context, id string, version *int) (*samples.Sample, samples.Ref, error) {
	var (
		row *sql.Row
		doc string
		ref = samples.Ref{ID: id}
	)
	if version == nil {
		row = s.db.QueryRowContext(ctx,
			`SELECT version, name, doc FROM samples WHERE id = ? ORDER BY version DESC LIMIT 1`, id)
	} else {
		row = s.db.QueryRowContext(ctx,
			`SELECT version, name, doc FROM samples WHERE id = ? AND version = ?`, id, *version)
	}

	if err := row.Scan(&ref.Version, &ref.Name, &doc); err != nil {
		if err == sql.ErrNoRows {
			return nil, samples.Ref{}, errors.NewNotFoundError("sample", id)
		}
		return nil, samples.Ref{}, errors.Wrap(err, "reading sample")
	}

	var sample samples.Sample
	if err := json.Unmarshal([]byte(doc), &sample); err != nil {
		return nil, samples.Ref{}, errors.Wrap(err, "decoding sample")
	}
	return &sample, ref, nil
}

// Validate is a no-op locally; schema validation lives in the remote
// service.
func (s *LocalStore) Validate(_ context.Context, _ []*samples.Sample) ([]diagnostics.Diagnostic, error) {
	return nil, nil
}
