package store

import (
	"context"

	"consultlaw-api/internal/model"
)

func (s *Store) CreateMessage(ctx context.Context, m *model.Message) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO messages (id, sender_id, recipient_id, content, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		m.ID, m.SenderID, m.RecipientID, m.Content, m.Timestamp,
	)
	return err
}

func (s *Store) Conversation(ctx context.Context, a, b string) ([]model.Message, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, sender_id, recipient_id, content, created_at, is_read
		 FROM messages
		 WHERE (sender_id = $1 AND recipient_id = $2)
		    OR (sender_id = $2 AND recipient_id = $1)
		 ORDER BY created_at`, a, b,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Message
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.SenderID, &m.RecipientID, &m.Content, &m.Timestamp, &m.Read); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// MarkMessageRead only succeeds for the message's recipient.
func (s *Store) MarkMessageRead(ctx context.Context, id, recipientID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE messages SET is_read = true WHERE id = $1 AND recipient_id = $2`, id, recipientID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}
