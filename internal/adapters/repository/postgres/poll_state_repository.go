package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/vncsmyrnk/pollvoter/internal/core/domain"
	"github.com/vncsmyrnk/pollvoter/internal/core/ports"
)

type pollStateRepository struct {
	db *sql.DB
}

func NewPollStateRepository(db *sql.DB) ports.PollStateRepository {
	return &pollStateRepository{
		db: db,
	}
}

func (r *pollStateRepository) Load(ctx context.Context) (*domain.PollDocument, error) {
	doc := domain.NewPollDocument()

	err := r.db.QueryRowContext(ctx, `SELECT last_updated FROM poll_documents WHERE id = 1`).Scan(&doc.LastUpdated)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to get poll document: %w", err)
	}

	queryPolls := `
		SELECT poll_id, question, expiry, ended_at, majority_answer_id, majority_answer_text, logged_ended
		FROM poll_states
	`
	rows, err := r.db.QueryContext(ctx, queryPolls)
	if err != nil {
		return nil, fmt.Errorf("failed to list poll states: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id       string
			state    domain.PollState
			expiry   sql.NullTime
			endedAt  sql.NullTime
			majority sql.NullString
		)
		if err := rows.Scan(&id, &state.Question, &expiry, &endedAt, &majority, &state.MajorityAnswerText, &state.LoggedEnded); err != nil {
			return nil, fmt.Errorf("failed to scan poll state: %w", err)
		}
		state.Expiry = timePtr(expiry)
		state.EndedAt = timePtr(endedAt)
		if majority.Valid {
			state.MajorityAnswerID = &majority.String
		}
		state.Answers = make(map[string]*domain.AnswerState)
		doc.Polls[id] = &state
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate poll states: %w", err)
	}

	answerRows, err := r.db.QueryContext(ctx, `SELECT poll_id, answer_id, text, total_count, voters FROM poll_answers`)
	if err != nil {
		return nil, fmt.Errorf("failed to list poll answers: %w", err)
	}
	defer answerRows.Close()

	for answerRows.Next() {
		var (
			pollID, answerID string
			answer           domain.AnswerState
		)
		if err := answerRows.Scan(&pollID, &answerID, &answer.Text, &answer.TotalCount, pq.Array(&answer.Voters)); err != nil {
			return nil, fmt.Errorf("failed to scan poll answer: %w", err)
		}
		if state, ok := doc.Polls[pollID]; ok {
			state.Answers[answerID] = &answer
		}
	}
	if err := answerRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate poll answers: %w", err)
	}

	return doc, nil
}

// Save replaces the stored document in one transaction. A poll already
// logged as ended stays logged even if the incoming state says otherwise.
func (r *pollStateRepository) Save(ctx context.Context, doc *domain.PollDocument) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	queryDocument := `
		INSERT INTO poll_documents (id, last_updated)
		VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET last_updated = EXCLUDED.last_updated
	`
	if _, err := tx.ExecContext(ctx, queryDocument, doc.LastUpdated); err != nil {
		return fmt.Errorf("failed to save poll document: %w", err)
	}

	ids := make([]string, 0, len(doc.Polls))
	for id := range doc.Polls {
		ids = append(ids, id)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM poll_states WHERE NOT (poll_id = ANY($1))`, pq.Array(ids)); err != nil {
		return fmt.Errorf("failed to prune poll states: %w", err)
	}

	queryPoll := `
		INSERT INTO poll_states (poll_id, question, expiry, ended_at, majority_answer_id, majority_answer_text, logged_ended)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (poll_id) DO UPDATE SET
			question = EXCLUDED.question,
			expiry = EXCLUDED.expiry,
			ended_at = EXCLUDED.ended_at,
			majority_answer_id = EXCLUDED.majority_answer_id,
			majority_answer_text = EXCLUDED.majority_answer_text,
			logged_ended = poll_states.logged_ended OR EXCLUDED.logged_ended
	`
	pollStmt, err := tx.PrepareContext(ctx, queryPoll)
	if err != nil {
		return fmt.Errorf("failed to prepare poll statement: %w", err)
	}
	defer pollStmt.Close()

	queryAnswer := `
		INSERT INTO poll_answers (poll_id, answer_id, text, total_count, voters)
		VALUES ($1, $2, $3, $4, $5)
	`
	answerStmt, err := tx.PrepareContext(ctx, queryAnswer)
	if err != nil {
		return fmt.Errorf("failed to prepare answer statement: %w", err)
	}
	defer answerStmt.Close()

	for id, state := range doc.Polls {
		var majority sql.NullString
		if state.MajorityAnswerID != nil {
			majority = sql.NullString{String: *state.MajorityAnswerID, Valid: true}
		}
		_, err := pollStmt.ExecContext(ctx, id, state.Question, nullTime(state.Expiry), nullTime(state.EndedAt),
			majority, state.MajorityAnswerText, state.LoggedEnded)
		if err != nil {
			return fmt.Errorf("failed to save poll state %s: %w", id, err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM poll_answers WHERE poll_id = $1`, id); err != nil {
			return fmt.Errorf("failed to clear answers of %s: %w", id, err)
		}
		for answerID, answer := range state.Answers {
			voters := answer.Voters
			if voters == nil {
				voters = []string{}
			}
			_, err := answerStmt.ExecContext(ctx, id, answerID, answer.Text, answer.TotalCount, pq.Array(voters))
			if err != nil {
				return fmt.Errorf("failed to save answer %s of %s: %w", answerID, id, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
