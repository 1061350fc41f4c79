// Package store keeps documents in SQLite together with the history of
// change logs and merges applied to them.
//
// Every update loads the stored body, applies the operation in memory and
// writes the result back in the same transaction. A failed replay or merge
// rolls back and leaves the stored revision untouched.
package store

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/FocuswithJustin/bdoc/core/bdoc"
	"github.com/FocuswithJustin/bdoc/core/changelog"
	"github.com/FocuswithJustin/bdoc/core/codec"
	"github.com/FocuswithJustin/bdoc/core/errors"
	"github.com/FocuswithJustin/bdoc/core/reconcile"
	"github.com/FocuswithJustin/bdoc/core/sqlite"
)

// ChangeKind labels a history entry.
type ChangeKind string

// History entry kinds.
const (
	KindPut     ChangeKind = "put"
	KindChanges ChangeKind = "changes"
	KindMerge   ChangeKind = "merge"
)

// Record describes a stored document without its body.
type Record struct {
	ID         string          `json:"id"`
	Name       string          `json:"name,omitempty"`
	TextHash   string          `json:"text_hash"`
	OffsetType bdoc.OffsetType `json:"offset_type"`
	Revision   int64           `json:"revision"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Change is one entry of a document's history. ChangeLog is set for
// entries of kind changes; Incoming for merges.
type Change struct {
	Revision  int64                `json:"revision"`
	Kind      ChangeKind           `json:"kind"`
	AppliedAt time.Time            `json:"applied_at"`
	ChangeLog *changelog.ChangeLog `json:"changelog,omitempty"`
	Incoming  *bdoc.Document       `json:"-"`
}

// Store is a SQLite-backed document store.
type Store struct {
	db    *sql.DB
	now   func() time.Time
	newID func() string
}

// Open opens (creating if needed) the store database at path.
func Open(path string) (*Store, error) {
	db, err := sqlite.OpenStore(path)
	if err != nil {
		return nil, errors.NewIO("open store", path, err)
	}
	s, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database and applies the schema.
func New(db *sql.DB) (*Store, error) {
	if err := ApplySchema(db); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db, now: time.Now, newID: uuid.NewString}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put stores a new document at revision 1.
func (s *Store) Put(ctx context.Context, doc *bdoc.Document) (Record, error) {
	if errs := bdoc.Validate(doc); len(errs) > 0 {
		return Record{}, errs[0]
	}
	body, err := encodeDocument(doc)
	if err != nil {
		return Record{}, err
	}

	now := s.now()
	rec := Record{
		ID:         s.newID(),
		Name:       doc.Name,
		TextHash:   bdoc.TextHash(doc),
		OffsetType: doc.OffsetType,
		Revision:   1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO documents (id, name, text_hash, offset_type, body, revision, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, rec.Name, rec.TextHash, string(rec.OffsetType), body, rec.Revision,
			now.UnixMilli(), now.UnixMilli())
		if err != nil {
			return fmt.Errorf("insert document: %w", err)
		}
		return insertChange(ctx, tx, rec.ID, rec.Revision, KindPut, nil, now)
	})
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Get returns the stored document and its record.
func (s *Store) Get(ctx context.Context, id string) (*bdoc.Document, Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, text_hash, offset_type, revision, created_at, updated_at, body
		FROM documents WHERE id = ?`, id)
	rec, body, err := scanDocument(row, id)
	if err != nil {
		return nil, Record{}, err
	}
	doc, err := decodeDocument(body)
	if err != nil {
		return nil, Record{}, err
	}
	doc.Name = rec.Name
	return doc, rec, nil
}

// List returns all records, most recently updated first.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, text_hash, offset_type, revision, created_at, updated_at
		FROM documents ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var ot string
		var created, updated int64
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.TextHash, &ot, &rec.Revision, &created, &updated); err != nil {
			return nil, err
		}
		rec.OffsetType = bdoc.OffsetType(ot)
		rec.CreatedAt = time.UnixMilli(created)
		rec.UpdatedAt = time.UnixMilli(updated)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Delete removes a document and its history.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM changes WHERE doc_id = ?`, id); err != nil {
			return fmt.Errorf("delete history: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete document: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return errors.NewNotFound("document", id)
		}
		return nil
	})
}

// ApplyChangeLog replays log onto the stored document.
func (s *Store) ApplyChangeLog(ctx context.Context, id string, log *changelog.ChangeLog, opts reconcile.Options) (Record, changelog.Stats, error) {
	logBody, err := encodeChangeLog(log)
	if err != nil {
		return Record{}, changelog.Stats{}, err
	}

	var stats changelog.Stats
	rec, err := s.update(ctx, id, KindChanges, logBody, func(doc *bdoc.Document) error {
		var err error
		stats, err = changelog.NewReplayer(doc, opts).Apply(log)
		return err
	})
	return rec, stats, err
}

// Merge reconciles incoming into the stored document.
func (s *Store) Merge(ctx context.Context, id string, incoming *bdoc.Document, opts reconcile.Options) (Record, reconcile.Summary, error) {
	inBody, err := encodeDocument(incoming)
	if err != nil {
		return Record{}, reconcile.Summary{}, err
	}

	var sum reconcile.Summary
	rec, err := s.update(ctx, id, KindMerge, inBody, func(doc *bdoc.Document) error {
		var err error
		sum, err = reconcile.New(opts).Document(doc, incoming)
		return err
	})
	return rec, sum, err
}

// History returns the change entries of a document in revision order.
func (s *Store) History(ctx context.Context, id string) ([]Change, error) {
	if err := s.exists(ctx, id); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT revision, kind, body, applied_at FROM changes WHERE doc_id = ? ORDER BY revision`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Change
	for rows.Next() {
		var c Change
		var kind string
		var body []byte
		var applied int64
		if err := rows.Scan(&c.Revision, &kind, &body, &applied); err != nil {
			return nil, err
		}
		c.Kind = ChangeKind(kind)
		c.AppliedAt = time.UnixMilli(applied)
		switch c.Kind {
		case KindChanges:
			if c.ChangeLog, err = codec.DecodeChangeLog(bytes.NewReader(body), codec.FormatMsgPack); err != nil {
				return nil, fmt.Errorf("revision %d: %w", c.Revision, err)
			}
		case KindMerge:
			if c.Incoming, err = decodeDocument(body); err != nil {
				return nil, fmt.Errorf("revision %d: %w", c.Revision, err)
			}
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// update loads, mutates and writes back a document in one transaction.
func (s *Store) update(ctx context.Context, id string, kind ChangeKind, changeBody []byte, mutate func(*bdoc.Document) error) (Record, error) {
	var rec Record
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			`SELECT id, name, text_hash, offset_type, revision, created_at, updated_at, body
			FROM documents WHERE id = ?`, id)
		var body []byte
		var err error
		rec, body, err = scanDocument(row, id)
		if err != nil {
			return err
		}
		doc, err := decodeDocument(body)
		if err != nil {
			return err
		}
		doc.Name = rec.Name

		if err := mutate(doc); err != nil {
			return err
		}

		newBody, err := encodeDocument(doc)
		if err != nil {
			return err
		}
		now := s.now()
		res, err := tx.ExecContext(ctx,
			`UPDATE documents SET name = ?, text_hash = ?, offset_type = ?, body = ?, revision = revision + 1, updated_at = ?
			WHERE id = ? AND revision = ?`,
			doc.Name, bdoc.TextHash(doc), string(doc.OffsetType), newBody, now.UnixMilli(), id, rec.Revision)
		if err != nil {
			return fmt.Errorf("update document: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n != 1 {
			return errors.NewPrecondition("update document", fmt.Sprintf("revision %d of %s changed concurrently", rec.Revision, id))
		}

		rec.Revision++
		rec.Name = doc.Name
		rec.TextHash = bdoc.TextHash(doc)
		rec.OffsetType = doc.OffsetType
		rec.UpdatedAt = now
		return insertChange(ctx, tx, id, rec.Revision, kind, changeBody, now)
	})
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) exists(ctx context.Context, id string) error {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM documents WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return errors.NewNotFound("document", id)
	}
	return err
}

func insertChange(ctx context.Context, tx *sql.Tx, id string, revision int64, kind ChangeKind, body []byte, at time.Time) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO changes (doc_id, revision, kind, body, applied_at) VALUES (?, ?, ?, ?, ?)`,
		id, revision, string(kind), body, at.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert change: %w", err)
	}
	return nil
}

func scanDocument(row *sql.Row, id string) (Record, []byte, error) {
	var rec Record
	var ot string
	var created, updated int64
	var body []byte
	err := row.Scan(&rec.ID, &rec.Name, &rec.TextHash, &ot, &rec.Revision, &created, &updated, &body)
	if err == sql.ErrNoRows {
		return Record{}, nil, errors.NewNotFound("document", id)
	}
	if err != nil {
		return Record{}, nil, err
	}
	rec.OffsetType = bdoc.OffsetType(ot)
	rec.CreatedAt = time.UnixMilli(created)
	rec.UpdatedAt = time.UnixMilli(updated)
	return rec, body, nil
}

func encodeDocument(doc *bdoc.Document) ([]byte, error) {
	var buf bytes.Buffer
	if err := codec.EncodeDocument(&buf, doc, codec.FormatMsgPack); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeDocument(body []byte) (*bdoc.Document, error) {
	doc, err := codec.DecodeDocument(bytes.NewReader(body), codec.FormatMsgPack)
	if err != nil {
		return nil, errors.Wrap(err, "stored document")
	}
	return doc, nil
}

func encodeChangeLog(log *changelog.ChangeLog) ([]byte, error) {
	var buf bytes.Buffer
	if err := codec.EncodeChangeLog(&buf, log, codec.FormatMsgPack); err != nil {
		return nil, fmt.Errorf("encode change log: %w", err)
	}
	return buf.Bytes(), nil
}
