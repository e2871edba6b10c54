package harvest

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/spatialworks/geocat/errors"
)

// Query constants
const (
	sourceInsertQuery = `
		INSERT INTO harvest_sources (id, url, title, owner_org, config)
		VALUES (?, ?, ?, ?, ?)`

	sourceSelectQuery = `
		SELECT id, url, title, owner_org, config FROM harvest_sources WHERE id = ?`

	jobInsertQuery = `
		INSERT INTO harvest_jobs (id, source_id) VALUES (?, ?)`

	jobSelectQuery = `
		SELECT id, source_id FROM harvest_jobs WHERE id = ?`

	objectInsertQuery = `
		INSERT INTO harvest_objects (id, guid, content, source_id, job_id, metadata_modified_date, current, record_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	objectSelectQuery = `
		SELECT id, guid, content, source_id, job_id, metadata_modified_date, current, record_id
		FROM harvest_objects WHERE id = ?`

	objectCurrentByGUIDSourceQuery = `
		SELECT id, guid, content, source_id, job_id, metadata_modified_date, current, record_id
		FROM harvest_objects
		WHERE guid = ? AND source_id = ? AND current = 1
		LIMIT 1`

	objectCurrentByGUIDQuery = `
		SELECT id FROM harvest_objects WHERE guid = ? AND current = 1 AND id != ? LIMIT 1`

	objectDeleteQuery = `
		DELETE FROM harvest_objects WHERE id = ?`

	objectExtraUpsertQuery = `
		INSERT INTO harvest_object_extras (object_id, key, value) VALUES (?, ?, ?)
		ON CONFLICT(object_id, key) DO UPDATE SET value = excluded.value`

	objectExtrasSelectQuery = `
		SELECT key, value FROM harvest_object_extras WHERE object_id = ?`

	objectErrorInsertQuery = `
		INSERT INTO harvest_object_errors (object_id, message, stage, line)
		VALUES (?, ?, ?, ?)`

	objectErrorsSelectQuery = `
		SELECT object_id, message, stage, line
		FROM harvest_object_errors WHERE object_id = ? ORDER BY id`
)

// ObjectStore persists harvest sources, jobs and objects in SQLite.
type ObjectStore struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

// NewObjectStore creates an object store on the given database. A nil
// logger disables logging.
func NewObjectStore(db *sql.DB, logger *zap.SugaredLogger) *ObjectStore {
	return &ObjectStore{db: db, logger: logger}
}

// CreateSource inserts a harvest source.
func (s *ObjectStore) CreateSource(ctx context.Context, src *Source) error {
	_, err := s.db.ExecContext(ctx, sourceInsertQuery, src.ID, src.URL, src.Title, src.OwnerOrg, src.Config)
	return errors.Wrapf(err, "insert source %s", src.ID)
}

// GetSource loads a harvest source by id.
func (s *ObjectStore) GetSource(ctx context.Context, id string) (*Source, error) {
	src := &Source{}
	err := s.db.QueryRowContext(ctx, sourceSelectQuery, id).Scan(
		&src.ID, &src.URL, &src.Title, &src.OwnerOrg, &src.Config)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(errors.ErrNotFound, "source %s", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "select source %s", id)
	}
	return src, nil
}

// CreateJob inserts a harvest job.
func (s *ObjectStore) CreateJob(ctx context.Context, job *Job) error {
	_, err := s.db.ExecContext(ctx, jobInsertQuery, job.ID, job.SourceID)
	return errors.Wrapf(err, "insert job %s", job.ID)
}

// GetJob loads a harvest job by id.
func (s *ObjectStore) GetJob(ctx context.Context, id string) (*Job, error) {
	job := &Job{}
	err := s.db.QueryRowContext(ctx, jobSelectQuery, id).Scan(&job.ID, &job.SourceID)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(errors.ErrNotFound, "job %s", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "select job %s", id)
	}
	return job, nil
}

// CreateObject inserts a harvest object with its extras.
func (s *ObjectStore) CreateObject(ctx context.Context, obj *Object) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin create object")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, objectInsertQuery,
		obj.ID, obj.GUID, obj.Content, obj.SourceID, obj.JobID,
		obj.MetadataModifiedDate, obj.Current, obj.RecordID); err != nil {
		return errors.Wrapf(err, "insert object %s", obj.ID)
	}
	for key, value := range obj.Extras {
		if _, err := tx.ExecContext(ctx, objectExtraUpsertQuery, obj.ID, key, value); err != nil {
			return errors.Wrapf(err, "insert extra %q for object %s", key, obj.ID)
		}
	}
	return errors.Wrap(tx.Commit(), "commit create object")
}

// GetObject loads a harvest object with its extras.
func (s *ObjectStore) GetObject(ctx context.Context, id string) (*Object, error) {
	obj, err := s.scanObject(s.db.QueryRowContext(ctx, objectSelectQuery, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(errors.ErrNotFound, "object %s", id)
		}
		return nil, errors.Wrapf(err, "select object %s", id)
	}

	obj.Extras = map[string]string{}
	rows, err := s.db.QueryContext(ctx, objectExtrasSelectQuery, id)
	if err != nil {
		return nil, errors.Wrap(err, "select object extras")
	}
	defer rows.Close()
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, errors.Wrap(err, "scan object extra")
		}
		obj.Extras[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate object extras")
	}
	return obj, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *ObjectStore) scanObject(row rowScanner) (*Object, error) {
	obj := &Object{}
	var modified sql.NullTime
	var recordID sql.NullString
	err := row.Scan(&obj.ID, &obj.GUID, &obj.Content, &obj.SourceID, &obj.JobID,
		&modified, &obj.Current, &recordID)
	if err != nil {
		return nil, err
	}
	if modified.Valid {
		t := modified.Time
		obj.MetadataModifiedDate = &t
	}
	if recordID.Valid {
		v := recordID.String
		obj.RecordID = &v
	}
	return obj, nil
}

// CurrentObject returns the current object for a GUID within a source,
// or errors.ErrNotFound.
func (s *ObjectStore) CurrentObject(ctx context.Context, guid, sourceID string) (*Object, error) {
	obj, err := s.scanObject(s.db.QueryRowContext(ctx, objectCurrentByGUIDSourceQuery, guid, sourceID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(errors.ErrNotFound, "no current object for guid %s", guid)
		}
		return nil, errors.Wrapf(err, "select current object for guid %s", guid)
	}
	return obj, nil
}

// OtherCurrentObjectID returns the id of a current object elsewhere
// holding the given GUID, excluding the object making the claim.
// Returns errors.ErrNotFound when the GUID is free.
func (s *ObjectStore) OtherCurrentObjectID(ctx context.Context, guid, excludeObjectID string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, objectCurrentByGUIDQuery, guid, excludeObjectID).Scan(&id)
	if err == sql.ErrNoRows {
		return "", errors.Wrapf(errors.ErrNotFound, "no current object with guid %s", guid)
	}
	if err != nil {
		return "", errors.Wrapf(err, "select current object with guid %s", guid)
	}
	return id, nil
}

// SetCurrent flips an object's current flag.
func (s *ObjectStore) SetCurrent(ctx context.Context, objectID string, current bool) error {
	_, err := s.db.ExecContext(ctx, `UPDATE harvest_objects SET current = ? WHERE id = ?`, current, objectID)
	return errors.Wrapf(err, "set current=%v on object %s", current, objectID)
}

// SetGUID updates an object's GUID.
func (s *ObjectStore) SetGUID(ctx context.Context, objectID, guid string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE harvest_objects SET guid = ? WHERE id = ?`, guid, objectID)
	return errors.Wrapf(err, "set guid on object %s", objectID)
}

// SetContent replaces an object's document content (after a transform
// chain has produced ISO XML).
func (s *ObjectStore) SetContent(ctx context.Context, objectID, content string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE harvest_objects SET content = ? WHERE id = ?`, content, objectID)
	return errors.Wrapf(err, "set content on object %s", objectID)
}

// SetMetadataModifiedDate updates an object's reference date.
func (s *ObjectStore) SetMetadataModifiedDate(ctx context.Context, objectID string, t time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE harvest_objects SET metadata_modified_date = ? WHERE id = ?`, t, objectID)
	return errors.Wrapf(err, "set metadata date on object %s", objectID)
}

// SetRecordID links an object to the catalog record it produced.
func (s *ObjectStore) SetRecordID(ctx context.Context, objectID, recordID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE harvest_objects SET record_id = ? WHERE id = ?`, recordID, objectID)
	return errors.Wrapf(err, "set record id on object %s", objectID)
}

// SetJobID reassigns an object to a job. Used to carry the prior job
// lineage forward when a document is unchanged.
func (s *ObjectStore) SetJobID(ctx context.Context, objectID, jobID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE harvest_objects SET job_id = ? WHERE id = ?`, jobID, objectID)
	return errors.Wrapf(err, "set job id on object %s", objectID)
}

// DeleteObject removes a harvest object (extras and errors cascade).
func (s *ObjectStore) DeleteObject(ctx context.Context, objectID string) error {
	_, err := s.db.ExecContext(ctx, objectDeleteQuery, objectID)
	return errors.Wrapf(err, "delete object %s", objectID)
}

// MarkCurrent flags an object as the current representation of its
// GUID. Unless force is set it re-checks, in the same transaction, that
// no other current object holds the GUID; a detected conflict returns
// errors.ErrGUIDConflict. Under force the check is skipped, preserving
// the possibility of two simultaneously-current objects for one GUID.
func (s *ObjectStore) MarkCurrent(ctx context.Context, objectID, guid string, force bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin mark current")
	}
	defer tx.Rollback()

	if !force {
		var otherID string
		err := tx.QueryRowContext(ctx, objectCurrentByGUIDQuery, guid, objectID).Scan(&otherID)
		if err == nil {
			return errors.Wrapf(errors.ErrGUIDConflict, "object %s already current for guid %s", otherID, guid)
		}
		if err != sql.ErrNoRows {
			return errors.Wrap(err, "re-check current objects")
		}
	}

	if _, err := tx.ExecContext(ctx, `UPDATE harvest_objects SET current = 1 WHERE id = ?`, objectID); err != nil {
		return errors.Wrapf(err, "flag object %s current", objectID)
	}
	return errors.Wrap(tx.Commit(), "commit mark current")
}

// SaveObjectError records a structured pipeline failure on an object.
func (s *ObjectStore) SaveObjectError(ctx context.Context, objectID, message, stage string, line *int) error {
	if s.logger != nil {
		s.logger.Warnw("Recording object error",
			"object_id", objectID,
			"stage", stage,
			"message", message,
		)
	}
	_, err := s.db.ExecContext(ctx, objectErrorInsertQuery, objectID, message, stage, line)
	return errors.Wrapf(err, "record error for object %s", objectID)
}

// ObjectErrors returns the recorded errors for an object in insertion
// order.
func (s *ObjectStore) ObjectErrors(ctx context.Context, objectID string) ([]ObjectError, error) {
	rows, err := s.db.QueryContext(ctx, objectErrorsSelectQuery, objectID)
	if err != nil {
		return nil, errors.Wrap(err, "select object errors")
	}
	defer rows.Close()

	var out []ObjectError
	for rows.Next() {
		var oe ObjectError
		var line sql.NullInt64
		if err := rows.Scan(&oe.ObjectID, &oe.Message, &oe.Stage, &line); err != nil {
			return nil, errors.Wrap(err, "scan object error")
		}
		if line.Valid {
			v := int(line.Int64)
			oe.Line = &v
		}
		out = append(out, oe)
	}
	return out, errors.Wrap(rows.Err(), "iterate object errors")
}
