package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/sally802528/grade-query-education-system/internal/model"
)

const messageColumns = `id, sender_id, recipient_id, project_id, body, hidden, hidden_by, created_at`

func (s *Store) CreateMessage(ctx context.Context, msg model.Message) error {
	_, err := s.pool.Exec(ctx, `
    INSERT INTO messages (id, sender_id, recipient_id, project_id, body, hidden, created_at)
    VALUES ($1, $2, $3, $4, $5, false, $6)
  `, msg.ID, msg.SenderID, msg.RecipientID, msg.ProjectID, msg.Body, msg.CreatedAt)
	return translate(err)
}

// ListMessagesFor returns the visible conversation of one participant.
func (s *Store) ListMessagesFor(ctx context.Context, userID string) ([]model.Message, error) {
	rows, err := s.pool.Query(ctx, `
    SELECT `+messageColumns+`
    FROM messages
    WHERE hidden = false AND (sender_id = $1 OR recipient_id = $1)
    ORDER BY created_at
  `, userID)
	if err != nil {
		return nil, err
	}
	return collectMessages(rows)
}

// ListAllMessages includes hidden messages for moderation.
func (s *Store) ListAllMessages(ctx context.Context) ([]model.Message, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+messageColumns+` FROM messages ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	return collectMessages(rows)
}

func (s *Store) HideMessage(ctx context.Context, messageID, hiddenBy string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE messages SET hidden = true, hidden_by = $2 WHERE id = $1`, messageID, hiddenBy)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func collectMessages(rows pgx.Rows) ([]model.Message, error) {
	defer rows.Close()
	var messages []model.Message
	for rows.Next() {
		var msg model.Message
		if err := rows.Scan(&msg.ID, &msg.SenderID, &msg.RecipientID, &msg.ProjectID, &msg.Body, &msg.Hidden, &msg.HiddenBy, &msg.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}
