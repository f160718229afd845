package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/google/uuid"
)

// AddMemory inserts or updates a memory entry. A missing ID is generated and
// a zero timestamp is set to now. The stored entry is returned.
func (s *Store) AddMemory(ctx context.Context, m MemoryEntry) (MemoryEntry, error) {
	if !m.Tier.Valid() {
		return m, fmt.Errorf("invalid memory tier %q", m.Tier)
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}
	err := s.do(ctx, func(ctx context.Context, db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO memories (id, tier, content, category, timestamp, protection_level)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				tier = excluded.tier,
				content = excluded.content,
				category = excluded.category,
				timestamp = excluded.timestamp,
				protection_level = excluded.protection_level
		`, m.ID, string(m.Tier), m.Content, m.Category, m.Timestamp.Unix(), m.ProtectionLevel)
		return fail(OpExec, "add memory", err)
	})
	return m, err
}

const memoryColumns = "m.id, m.tier, m.content, m.category, m.timestamp, m.protection_level"

func scanMemory(scan func(dest ...any) error, extra ...any) (MemoryEntry, error) {
	var m MemoryEntry
	var tier string
	var ts int64
	dest := append([]any{&m.ID, &tier, &m.Content, &m.Category, &ts, &m.ProtectionLevel}, extra...)
	if err := scan(dest...); err != nil {
		return m, err
	}
	m.Tier = Tier(tier)
	m.Timestamp = time.Unix(ts, 0)
	return m, nil
}

// Memory returns a single memory by id.
func (s *Store) Memory(ctx context.Context, id string) (MemoryEntry, error) {
	var m MemoryEntry
	err := s.do(ctx, func(ctx context.Context, db *sql.DB) error {
		row := db.QueryRowContext(ctx, "SELECT "+memoryColumns+" FROM memories m WHERE m.id = ?", id)
		var err error
		m, err = scanMemory(row.Scan)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fail(OpStep, "read memory", err)
	})
	return m, err
}

// ListMemories returns the newest memories first. An empty tier lists all tiers.
func (s *Store) ListMemories(ctx context.Context, tier Tier, limit int) ([]MemoryEntry, error) {
	var out []MemoryEntry
	err := s.do(ctx, func(ctx context.Context, db *sql.DB) error {
		rows, err := db.QueryContext(ctx, `
			SELECT `+memoryColumns+` FROM memories m
			WHERE ? = '' OR m.tier = ?
			ORDER BY m.timestamp DESC, m.id
			LIMIT ?
		`, string(tier), string(tier), limit)
		if err != nil {
			return fail(OpPrepare, "list memories", err)
		}
		defer rows.Close()
		for rows.Next() {
			m, err := scanMemory(rows.Scan)
			if err != nil {
				return fail(OpStep, "scan memory", err)
			}
			out = append(out, m)
		}
		return fail(OpStep, "iterate memories", rows.Err())
	})
	return out, err
}

// DeleteMemory removes a memory and its embeddings.
func (s *Store) DeleteMemory(ctx context.Context, id string) error {
	return s.execOne(ctx, "delete memory", "DELETE FROM memories WHERE id = ?", id)
}

// PruneMemories deletes unprotected memories of a tier older than before.
func (s *Store) PruneMemories(ctx context.Context, tier Tier, before time.Time) (int, error) {
	var n int64
	err := s.do(ctx, func(ctx context.Context, db *sql.DB) error {
		res, err := db.ExecContext(ctx,
			"DELETE FROM memories WHERE tier = ? AND protection_level = 0 AND timestamp < ?",
			string(tier), before.Unix(),
		)
		if err != nil {
			return fail(OpExec, "prune memories", err)
		}
		n, err = res.RowsAffected()
		return fail(OpExec, "prune memories", err)
	})
	return int(n), err
}

// UpsertEmbedding stores the vector of a memory for one model, replacing any
// previous vector for the same model.
func (s *Store) UpsertEmbedding(ctx context.Context, memoryID, modelID string, vector []float32) error {
	if len(vector) == 0 {
		return fail(OpBind, "embedding", errors.New("empty vector"))
	}
	blob, err := sqlite_vec.SerializeFloat32(vector)
	if err != nil {
		return fail(OpBind, "serialize embedding", err)
	}
	return s.do(ctx, func(ctx context.Context, db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO memory_embeddings (memory_id, model_id, dimensions, vector, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(memory_id, model_id) DO UPDATE SET
				dimensions = excluded.dimensions,
				vector = excluded.vector,
				updated_at = excluded.updated_at
		`, memoryID, modelID, len(vector), blob, time.Now().Unix())
		return fail(OpExec, "upsert embedding", err)
	})
}

// SearchSimilarMemories returns the memories nearest to vector by cosine
// distance, considering only embeddings of modelID with the same dimension.
// An empty tier searches all tiers.
func (s *Store) SearchSimilarMemories(ctx context.Context, modelID string, vector []float32, limit int, tier Tier) ([]MemoryMatch, error) {
	blob, err := sqlite_vec.SerializeFloat32(vector)
	if err != nil {
		return nil, fail(OpBind, "serialize query vector", err)
	}
	var out []MemoryMatch
	err = s.do(ctx, func(ctx context.Context, db *sql.DB) error {
		rows, err := db.QueryContext(ctx, `
			SELECT `+memoryColumns+`, vec_distance_cosine(e.vector, ?) AS distance
			FROM memory_embeddings e
			JOIN memories m ON m.id = e.memory_id
			WHERE e.model_id = ? AND e.dimensions = ? AND (? = '' OR m.tier = ?)
			ORDER BY distance
			LIMIT ?
		`, blob, modelID, len(vector), string(tier), string(tier), limit)
		if err != nil {
			return fail(OpPrepare, "similar memories", err)
		}
		defer rows.Close()
		for rows.Next() {
			var mm MemoryMatch
			entry, err := scanMemory(rows.Scan, &mm.Distance)
			if err != nil {
				return fail(OpStep, "scan memory", err)
			}
			mm.MemoryEntry = entry
			out = append(out, mm)
		}
		return fail(OpStep, "iterate memories", rows.Err())
	})
	return out, err
}
