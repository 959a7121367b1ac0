package repository

import (
	"context"
	"database/sql"
	"naskahsync/internal/document/model"
	"naskahsync/pkg/logger"
)

// ChatRepository persists the append-only per-document chat log.
type ChatRepository struct {
	DB *sql.DB
}

func NewChatRepository(db *sql.DB) *ChatRepository {
	return &ChatRepository{DB: db}
}

// AppendMessage inserts msg and fills in its sequence number.
func (r *ChatRepository) AppendMessage(ctx context.Context, msg *model.ChatMessage) error {
	err := r.DB.QueryRowContext(ctx, `
		INSERT INTO chat_messages (id, document_id, sender_id, sender_email, body, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING seq`,
		msg.ID, msg.DocumentID, msg.SenderID, msg.SenderEmail, msg.Body, msg.Timestamp,
	).Scan(&msg.Seq)
	if err != nil {
		logger.Sugar.Errorf("Failed to append chat message to doc %s: %v", msg.DocumentID, err)
		return storeErr(err)
	}
	return nil
}

func (r *ChatRepository) History(ctx context.Context, docID string) ([]model.ChatMessage, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT seq, id, document_id, sender_id, sender_email, body, created_at
		FROM chat_messages WHERE document_id = $1 ORDER BY created_at ASC, seq ASC`, docID)
	if err != nil {
		logger.Sugar.Errorf("Failed to get chat history for doc %s: %v", docID, err)
		return nil, storeErr(err)
	}
	defer rows.Close()

	msgs := []model.ChatMessage{}
	for rows.Next() {
		var m model.ChatMessage
		if err := rows.Scan(&m.Seq, &m.ID, &m.DocumentID, &m.SenderID, &m.SenderEmail, &m.Body, &m.Timestamp); err != nil {
			return nil, storeErr(err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err)
	}
	return msgs, nil
}
