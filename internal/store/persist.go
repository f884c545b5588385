package store

import (
	"fmt"
	"time"

	"github.com/savitharaghunathan/c-sharp-analyzer-provider/internal/csgraph"
	"github.com/savitharaghunathan/c-sharp-analyzer-provider/internal/dotnet"
)

// ReplaceGraph transactionally replaces the persisted reference graph with g.
// Init calls this once per successful pipeline run; a failure leaves the
// previous contents intact.
func (s *Store) ReplaceGraph(g *csgraph.Graph) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{
		"DELETE FROM references_",
		"DELETE FROM files",
	} {
		if _, err := tx.Exec(q); err != nil {
			return fmt.Errorf("clear previous graph: %w", err)
		}
	}

	now := time.Now()
	for path, file := range g.Files {
		res, err := tx.Exec(
			"INSERT INTO files (path, namespace, loaded_at) VALUES (?, ?, ?)",
			path, file.Namespace, now,
		)
		if err != nil {
			return fmt.Errorf("insert file %s: %w", path, err)
		}
		fileID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		for _, ref := range file.Refs {
			if _, err := tx.Exec(
				`INSERT INTO references_ (file_id, symbol, context, line, start_line, start_col, end_line, end_col)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				fileID, ref.Symbol, ref.Context.String(), ref.Line,
				ref.Span.Start.Line, ref.Span.Start.Character,
				ref.Span.End.Line, ref.Span.End.Character,
			); err != nil {
				return fmt.Errorf("insert reference %s in %s: %w", ref.Symbol, path, err)
			}
		}
	}

	return tx.Commit()
}

// SaveDependencies replaces the persisted dependency set.
func (s *Store) SaveDependencies(deps []dotnet.Dependency) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM dependencies"); err != nil {
		return fmt.Errorf("clear dependencies: %w", err)
	}
	for _, dep := range deps {
		if _, err := tx.Exec(
			"INSERT OR IGNORE INTO dependencies (name, version, project) VALUES (?, ?, ?)",
			dep.Name, dep.Version, dep.Project,
		); err != nil {
			return fmt.Errorf("insert dependency %s: %w", dep.Name, err)
		}
	}
	return tx.Commit()
}

// InsertSDKMetadataFiles records the SDK metadata files loaded for framework
// and returns how many were newly recorded.
func (s *Store) InsertSDKMetadataFiles(paths []string, framework string) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	count := 0
	for _, path := range paths {
		res, err := tx.Exec(
			"INSERT OR IGNORE INTO sdk_metadata (path, framework, loaded_at) VALUES (?, ?, ?)",
			path, framework, now,
		)
		if err != nil {
			return 0, fmt.Errorf("insert sdk metadata %s: %w", path, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			count += int(n)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return count, nil
}

// Stats reports persisted row counts, used for load logging and tests.
type Stats struct {
	Files        int
	References   int
	Dependencies int
	SDKMetadata  int
}

// LoadStats counts the persisted graph contents.
func (s *Store) LoadStats() (Stats, error) {
	var st Stats
	for _, c := range []struct {
		query string
		dst   *int
	}{
		{"SELECT COUNT(*) FROM files", &st.Files},
		{"SELECT COUNT(*) FROM references_", &st.References},
		{"SELECT COUNT(*) FROM dependencies", &st.Dependencies},
		{"SELECT COUNT(*) FROM sdk_metadata", &st.SDKMetadata},
	} {
		if err := s.db.QueryRow(c.query).Scan(c.dst); err != nil {
			return Stats{}, fmt.Errorf("load stats: %w", err)
		}
	}
	return st, nil
}
