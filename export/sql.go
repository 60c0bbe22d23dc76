package export

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/golang/glog"

	"github.com/hb9tf/radarlog/sensor"
)

// Table is the name of the table frames are stored in.
const Table = "frames"

// sqlStore implements the SQL exporters. Only the statements differ
// between database flavors.
type sqlStore struct {
	name       string
	identifier string
	source     string

	db     *sql.DB
	insert *sql.Stmt
	counts map[string]int
}

func newSQLStore(ctx context.Context, name string, db *sql.DB, createTmpl, insertTmpl, identifier, source string) (*sqlStore, error) {
	if _, err := db.ExecContext(ctx, createTmpl); err != nil {
		return nil, fmt.Errorf("unable to create table: %w", err)
	}
	insert, err := db.PrepareContext(ctx, insertTmpl)
	if err != nil {
		return nil, fmt.Errorf("unable to prepare insert: %w", err)
	}
	return &sqlStore{
		name:       name,
		identifier: identifier,
		source:     source,
		db:         db,
		insert:     insert,
		counts:     newCounts(),
	}, nil
}

func (s *sqlStore) Write(ctx context.Context, f *sensor.Frame) error {
	return s.WriteRecord(ctx, NewRecord(s.identifier, s.source, f))
}

func (s *sqlStore) WriteRecord(ctx context.Context, r Record) error {
	data, err := r.Data()
	if err == nil {
		_, err = s.insert.ExecContext(ctx, r.Identifier, r.Source, r.Mode, int64(r.Seq), r.Time, r.Len(), data)
	}
	count(s.name, s.counts, err)
	if err != nil {
		return fmt.Errorf("error storing in %s DB: %w", s.name, err)
	}
	return nil
}

// Close releases the prepared statement and closes the database.
func (s *sqlStore) Close() error {
	glog.V(1).Infof("%s export counts: %+v", s.name, s.counts)
	serr := s.insert.Close()
	if err := s.db.Close(); err != nil {
		return err
	}
	return serr
}
