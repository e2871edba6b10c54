package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spatialworks/geocat/errors"
)

// Query constants
const (
	recordInsertQuery = `
		INSERT INTO records (id, name, title, notes, url, owner_org, license_id, state)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	recordUpdateQuery = `
		UPDATE records
		SET name = ?, title = ?, notes = ?, url = ?, owner_org = ?, license_id = ?, state = ?,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`

	recordDeleteQuery = `
		UPDATE records SET state = 'deleted', updated_at = CURRENT_TIMESTAMP WHERE id = ?`

	recordSelectQuery = `
		SELECT id, name, title, notes, url, owner_org, license_id, state
		FROM records WHERE id = ?`

	recordNameExistsQuery = `
		SELECT EXISTS(SELECT 1 FROM records WHERE name = ?)`

	recordNameByIDQuery = `
		SELECT name FROM records WHERE id = ?`

	tagInsertQuery = `
		INSERT OR IGNORE INTO record_tags (record_id, name) VALUES (?, ?)`

	extraInsertQuery = `
		INSERT INTO record_extras (record_id, key, value) VALUES (?, ?, ?)`

	resourceInsertQuery = `
		INSERT INTO record_resources
			(record_id, position, url, format, name, description, last_modified,
			 locator_protocol, locator_function, verified, verified_date, wms_layer)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	childDeleteTagsQuery      = `DELETE FROM record_tags WHERE record_id = ?`
	childDeleteExtrasQuery    = `DELETE FROM record_extras WHERE record_id = ?`
	childDeleteResourcesQuery = `DELETE FROM record_resources WHERE record_id = ?`

	orgInsertQuery = `
		INSERT OR IGNORE INTO organizations (id, title) VALUES (?, ?)`

	orgSelectQuery = `
		SELECT id, title FROM organizations WHERE id = ?`

	reindexUpdateQuery = `
		UPDATE record_extras SET value = ? WHERE record_id = ? AND key = 'harvest_object_id'`
)

var (
	nameShapeRe = regexp.MustCompile(`^[a-z0-9\-_]+$`)
	tagShapeRe  = regexp.MustCompile(`^[\p{L}\p{N}_ \-.]+$`)
)

// SQLStore is the SQLite-backed catalog store.
type SQLStore struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

// NewSQLStore creates a catalog store on the given database. A nil
// logger disables logging.
func NewSQLStore(db *sql.DB, logger *zap.SugaredLogger) *SQLStore {
	return &SQLStore{db: db, logger: logger}
}

var _ Store = (*SQLStore)(nil)
var _ NameGenerator = (*SQLStore)(nil)

// validateRecord applies catalog-side schema checks. Returns nil when
// the record is acceptable.
func (s *SQLStore) validateRecord(rec *Record) *ValidationError {
	summary := map[string][]string{}

	if rec.Title == "" {
		summary["title"] = append(summary["title"], "missing value")
	}
	if rec.Name == "" {
		summary["name"] = append(summary["name"], "missing value")
	} else {
		if len(rec.Name) > MaxNameLength {
			summary["name"] = append(summary["name"], fmt.Sprintf("length must be at most %d", MaxNameLength))
		}
		if !nameShapeRe.MatchString(rec.Name) {
			summary["name"] = append(summary["name"], "must be a lowercase url-safe slug")
		}
	}
	for _, tag := range rec.Tags {
		if utf8.RuneCountInString(tag) > 50 {
			summary["tags"] = append(summary["tags"], fmt.Sprintf("tag %q longer than 50 characters", tag))
		} else if tag == "" || !tagShapeRe.MatchString(tag) {
			summary["tags"] = append(summary["tags"], fmt.Sprintf("invalid tag %q", tag))
		}
	}
	for _, res := range rec.Resources {
		if res.URL == "" {
			summary["resources"] = append(summary["resources"], "resource without url")
		}
	}

	if len(summary) == 0 {
		return nil
	}
	return &ValidationError{Summary: summary}
}

// Create inserts a new record with its tags, extras and resources. The
// caller assigns the record id.
func (s *SQLStore) Create(ctx context.Context, rec *Record) (string, error) {
	if rec.ID == "" {
		return "", errors.New("record id must be assigned before create")
	}
	if verr := s.validateRecord(rec); verr != nil {
		return "", verr
	}

	var taken bool
	if err := s.db.QueryRowContext(ctx, recordNameExistsQuery, rec.Name).Scan(&taken); err != nil {
		return "", errors.Wrap(err, "check record name")
	}
	if taken {
		return "", &ValidationError{Summary: map[string][]string{
			"name": {fmt.Sprintf("%q already in use", rec.Name)},
		}}
	}

	state := rec.State
	if state == "" {
		state = "active"
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", errors.Wrap(err, "begin create record")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, recordInsertQuery,
		rec.ID, rec.Name, rec.Title, rec.Notes, rec.URL, rec.OwnerOrg, rec.LicenseID, state); err != nil {
		return "", errors.Wrapf(err, "insert record %s", rec.ID)
	}
	if err := s.insertChildren(ctx, tx, rec); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", errors.Wrap(err, "commit create record")
	}

	if s.logger != nil {
		s.logger.Infow("Created catalog record",
			"record_id", rec.ID,
			"name", rec.Name,
		)
	}
	return rec.ID, nil
}

// Update rewrites an existing record and replaces its tags, extras and
// resources.
func (s *SQLStore) Update(ctx context.Context, id string, rec *Record) (string, error) {
	if verr := s.validateRecord(rec); verr != nil {
		return "", verr
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", errors.Wrap(err, "begin update record")
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, recordUpdateQuery,
		rec.Name, rec.Title, rec.Notes, rec.URL, rec.OwnerOrg, rec.LicenseID, rec.State, id)
	if err != nil {
		return "", errors.Wrapf(err, "update record %s", id)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return "", errors.Wrap(err, "rows affected")
	}
	if affected == 0 {
		return "", errors.Wrapf(errors.ErrNotFound, "record %s", id)
	}

	for _, q := range []string{childDeleteTagsQuery, childDeleteExtrasQuery, childDeleteResourcesQuery} {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return "", errors.Wrapf(err, "clear children of record %s", id)
		}
	}
	rec.ID = id
	if err := s.insertChildren(ctx, tx, rec); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", errors.Wrap(err, "commit update record")
	}

	if s.logger != nil {
		s.logger.Infow("Updated catalog record",
			"record_id", id,
			"name", rec.Name,
		)
	}
	return id, nil
}

func (s *SQLStore) insertChildren(ctx context.Context, tx *sql.Tx, rec *Record) error {
	for _, tag := range rec.Tags {
		if _, err := tx.ExecContext(ctx, tagInsertQuery, rec.ID, tag); err != nil {
			return errors.Wrapf(err, "insert tag %q", tag)
		}
	}
	for key, value := range rec.Extras {
		if _, err := tx.ExecContext(ctx, extraInsertQuery, rec.ID, key, value); err != nil {
			return errors.Wrapf(err, "insert extra %q", key)
		}
	}
	for i, r := range rec.Resources {
		if _, err := tx.ExecContext(ctx, resourceInsertQuery,
			rec.ID, i, r.URL, r.Format, r.Name, r.Description, r.LastModified,
			r.LocatorProtocol, r.LocatorFunction, r.Verified, r.VerifiedDate, r.WMSLayer); err != nil {
			return errors.Wrapf(err, "insert resource %q", r.URL)
		}
	}
	return nil
}

// Delete marks a record deleted. Returns errors.ErrNotFound when no
// record has that id.
func (s *SQLStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, recordDeleteQuery, id)
	if err != nil {
		return errors.Wrapf(err, "delete record %s", id)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if affected == 0 {
		return errors.Wrapf(errors.ErrNotFound, "record %s", id)
	}
	if s.logger != nil {
		s.logger.Infow("Deleted catalog record", "record_id", id)
	}
	return nil
}

// Get loads a record with its tags, extras and resources.
func (s *SQLStore) Get(ctx context.Context, id string) (*Record, error) {
	rec := &Record{Extras: map[string]string{}}
	err := s.db.QueryRowContext(ctx, recordSelectQuery, id).Scan(
		&rec.ID, &rec.Name, &rec.Title, &rec.Notes, &rec.URL,
		&rec.OwnerOrg, &rec.LicenseID, &rec.State)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(errors.ErrNotFound, "record %s", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "select record %s", id)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT name FROM record_tags WHERE record_id = ?`, id)
	if err != nil {
		return nil, errors.Wrap(err, "select tags")
	}
	defer rows.Close()
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, errors.Wrap(err, "scan tag")
		}
		rec.Tags = append(rec.Tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate tags")
	}

	extraRows, err := s.db.QueryContext(ctx, `SELECT key, value FROM record_extras WHERE record_id = ?`, id)
	if err != nil {
		return nil, errors.Wrap(err, "select extras")
	}
	defer extraRows.Close()
	for extraRows.Next() {
		var key, value string
		if err := extraRows.Scan(&key, &value); err != nil {
			return nil, errors.Wrap(err, "scan extra")
		}
		rec.Extras[key] = value
	}
	if err := extraRows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate extras")
	}

	resRows, err := s.db.QueryContext(ctx, `
		SELECT url, format, name, description, last_modified,
		       locator_protocol, locator_function, verified, verified_date, wms_layer
		FROM record_resources WHERE record_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, errors.Wrap(err, "select resources")
	}
	defer resRows.Close()
	for resRows.Next() {
		var r Resource
		if err := resRows.Scan(&r.URL, &r.Format, &r.Name, &r.Description, &r.LastModified,
			&r.LocatorProtocol, &r.LocatorFunction, &r.Verified, &r.VerifiedDate, &r.WMSLayer); err != nil {
			return nil, errors.Wrap(err, "scan resource")
		}
		rec.Resources = append(rec.Resources, r)
	}
	if err := resRows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate resources")
	}

	return rec, nil
}

// ResolveOrCreateOrg fetches an organization by id, creating it with
// the given title when absent.
func (s *SQLStore) ResolveOrCreateOrg(ctx context.Context, id, title string) (*Organization, error) {
	if id == "" {
		return nil, errors.New("organization id is empty")
	}
	if _, err := s.db.ExecContext(ctx, orgInsertQuery, id, title); err != nil {
		return nil, errors.Wrapf(err, "create organization %s", id)
	}
	org := &Organization{}
	if err := s.db.QueryRowContext(ctx, orgSelectQuery, id).Scan(&org.ID, &org.Title); err != nil {
		return nil, errors.Wrapf(err, "select organization %s", id)
	}
	return org, nil
}

// Reindex refreshes a record's harvest_object_id back-reference after
// an unchanged import run. Inserts the extra if the record never had
// one.
func (s *SQLStore) Reindex(ctx context.Context, recordID, objectID string) error {
	res, err := s.db.ExecContext(ctx, reindexUpdateQuery, objectID, recordID)
	if err != nil {
		return errors.Wrapf(err, "reindex record %s", recordID)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if affected == 0 {
		if _, err := s.db.ExecContext(ctx, extraInsertQuery, recordID, "harvest_object_id", objectID); err != nil {
			return errors.Wrapf(err, "insert back-reference for record %s", recordID)
		}
	}
	if s.logger != nil {
		s.logger.Debugw("Reindexed record back-reference",
			"record_id", recordID,
			"object_id", objectID,
		)
	}
	return nil
}

// GenerateName produces a unique record name from a title, retrying
// with numeric suffixes while the slug is taken.
func (s *SQLStore) GenerateName(ctx context.Context, title string) (string, error) {
	base := MungeTitleToName(title)
	if base == "" {
		return "", errors.Newf("could not derive a name from %q", title)
	}

	candidate := base
	for i := 1; i <= 1000; i++ {
		var taken bool
		if err := s.db.QueryRowContext(ctx, recordNameExistsQuery, candidate).Scan(&taken); err != nil {
			return "", errors.Wrap(err, "check candidate name")
		}
		if !taken {
			return candidate, nil
		}
		suffix := strconv.Itoa(i)
		trimmed := base
		if len(trimmed)+len(suffix) > MaxNameLength {
			trimmed = trimmed[:MaxNameLength-len(suffix)]
		}
		candidate = trimmed + suffix
	}
	return "", errors.Newf("no free name for %q after 1000 attempts", title)
}
