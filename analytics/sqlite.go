package analytics

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hupe1980/dialmesh/core"
)

const schema = `
CREATE TABLE IF NOT EXISTS outcomes (
	session_id  TEXT PRIMARY KEY,
	contact_id  TEXT NOT NULL,
	campaign_id TEXT NOT NULL,
	phone       TEXT NOT NULL,
	outcome     TEXT NOT NULL,
	started_at  TIMESTAMP NOT NULL,
	ended_at    TIMESTAMP NOT NULL,
	turns       INTEGER NOT NULL,
	transcript  TEXT
);
CREATE INDEX IF NOT EXISTS idx_outcomes_campaign ON outcomes (campaign_id, outcome);

CREATE TABLE IF NOT EXISTS follow_ups (
	session_id  TEXT PRIMARY KEY,
	contact_id  TEXT NOT NULL,
	campaign_id TEXT NOT NULL,
	outcome     TEXT NOT NULL,
	retry       INTEGER NOT NULL,
	retry_at    TIMESTAMP,
	exhausted   INTEGER NOT NULL,
	reason      TEXT
);
`

// SQLiteStore persists records in a SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (and migrates) the database at path. ":memory:"
// gives a throwaway database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open analytics db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate analytics db: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// RecordOutcome implements core.OutcomeStore.
func (s *SQLiteStore) RecordOutcome(session *core.CallSession) error {
	rec := newRecord(session)
	transcript, err := json.Marshal(rec.Transcript)
	if err != nil {
		return fmt.Errorf("marshal transcript: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO outcomes
		 (session_id, contact_id, campaign_id, phone, outcome, started_at, ended_at, turns, transcript)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SessionID, rec.ContactID, rec.CampaignID, rec.Phone, string(rec.Outcome),
		rec.StartedAt, rec.EndedAt, rec.Turns, string(transcript),
	)
	if err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}
	return nil
}

// RecordFollowUp implements Store.
func (s *SQLiteStore) RecordFollowUp(decision core.RetryDecision) error {
	var retryAt any
	if !decision.RetryAt.IsZero() {
		retryAt = decision.RetryAt
	}
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO follow_ups
		 (session_id, contact_id, campaign_id, outcome, retry, retry_at, exhausted, reason)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		decision.SessionID, decision.ContactID, decision.CampaignID, string(decision.Outcome),
		decision.Retry, retryAt, decision.Exhausted, decision.Reason,
	)
	if err != nil {
		return fmt.Errorf("record follow-up: %w", err)
	}
	return nil
}

// Outcomes returns the records for a campaign, newest first. Transcripts
// are not hydrated; use Transcript for a single session.
func (s *SQLiteStore) Outcomes(campaignID string) ([]Record, error) {
	rows, err := s.db.Query(
		`SELECT session_id, contact_id, campaign_id, phone, outcome, started_at, ended_at, turns
		 FROM outcomes WHERE campaign_id = ? ORDER BY ended_at DESC`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var outcome string
		var started, ended time.Time
		if err := rows.Scan(&rec.SessionID, &rec.ContactID, &rec.CampaignID, &rec.Phone, &outcome, &started, &ended, &rec.Turns); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		rec.Outcome = core.Outcome(outcome)
		rec.StartedAt = started
		rec.EndedAt = ended
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Transcript loads the stored transcript of one session.
func (s *SQLiteStore) Transcript(sessionID string) ([]core.Turn, error) {
	var raw string
	err := s.db.QueryRow(`SELECT transcript FROM outcomes WHERE session_id = ?`, sessionID).Scan(&raw)
	if err != nil {
		return nil, fmt.Errorf("load transcript: %w", err)
	}
	var turns []core.Turn
	if err := json.Unmarshal([]byte(raw), &turns); err != nil {
		return nil, fmt.Errorf("decode transcript: %w", err)
	}
	return turns, nil
}

// Summary counts a campaign's records per outcome.
func (s *SQLiteStore) Summary(campaignID string) (map[core.Outcome]int, error) {
	rows, err := s.db.Query(
		`SELECT outcome, COUNT(*) FROM outcomes WHERE campaign_id = ? GROUP BY outcome`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("query summary: %w", err)
	}
	defer rows.Close()

	summary := make(map[core.Outcome]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		summary[core.Outcome(outcome)] = n
	}
	return summary, rows.Err()
}
