package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"naskahsync/internal/document/model"
	"naskahsync/pkg/apperr"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var docCols = []string{"id", "name", "description", "type", "content", "owner_id", "shared_with", "created_at", "last_modified"}

func TestGetDocument(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	mock.ExpectQuery("SELECT (.+) FROM documents WHERE id = \\$1").
		WithArgs("d1").
		WillReturnRows(sqlmock.NewRows(docCols).
			AddRow("d1", "Notes", "", "text", []byte(`"hello"`), "alice", "{carol@x.com,bob@x.com}", now, now))

	repo := NewDocumentRepository(db)
	doc, err := repo.Get(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, model.TypeText, doc.Type)
	assert.JSONEq(t, `"hello"`, string(doc.Content))
	assert.Equal(t, []string{"bob@x.com", "carol@x.com"}, doc.SharedWith)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetDocumentNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM documents WHERE id = \\$1").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(docCols))

	_, err = NewDocumentRepository(db).Get(context.Background(), "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDriverFailureIsStoreUnavailable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM documents WHERE id = \\$1").
		WillReturnError(errors.New("connection reset by peer"))

	_, err = NewDocumentRepository(db).Get(context.Background(), "d1")
	assert.ErrorIs(t, err, apperr.ErrStoreUnavailable)
	assert.True(t, apperr.Retryable(err))
}

func TestCreateDocument(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	doc := &model.Document{ID: "d1", Name: "Sheet", Type: model.TypeSpreadsheet, Content: json.RawMessage(`[[]]`),
		Owner: "alice", SharedWith: []string{}, CreatedAt: now, LastModified: now}

	mock.ExpectExec("INSERT INTO documents").
		WithArgs("d1", "Sheet", "", "spreadsheet", []byte(`[[]]`), "alice", sqlmock.AnyArg(), now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewDocumentRepository(db).Create(context.Background(), doc))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateContentMissingRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("UPDATE documents SET content = \\$1, last_modified = \\$2 WHERE id = \\$3").
		WithArgs([]byte(`"x"`), sqlmock.AnyArg(), "gone").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = NewDocumentRepository(db).UpdateContent(context.Background(), "gone", json.RawMessage(`"x"`), time.Now())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddShareAppendsWithoutReplacing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("UPDATE documents SET shared_with = array_append\\(shared_with, \\$1::text\\)").
		WithArgs("bob@x.com", sqlmock.AnyArg(), "d1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewDocumentRepository(db).AddShare(context.Background(), "d1", "bob@x.com", time.Now()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListForUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery("SELECT (.+) FROM documents\\s+WHERE owner_id = \\$1 OR shared_with @> ARRAY\\[\\$2::text\\]").
		WithArgs("bob", "bob@x.com").
		WillReturnRows(sqlmock.NewRows(docCols).
			AddRow("d2", "Mine", "", "text", []byte(`""`), "bob", "{}", now, now).
			AddRow("d1", "Shared", "", "text", []byte(`""`), "alice", "{bob@x.com}", now, now.Add(-time.Hour)))

	docs, err := NewDocumentRepository(db).ListForUser(context.Background(), "bob", "bob@x.com")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "d2", docs[0].ID)
	assert.Empty(t, docs[0].SharedWith)
	assert.Equal(t, []string{"bob@x.com"}, docs[1].SharedWith)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChatAppendAndHistory(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	msg := &model.ChatMessage{ID: "m1", DocumentID: "d1", SenderID: "alice", SenderEmail: "alice@x.com", Body: "hi", Timestamp: ts}

	mock.ExpectQuery("INSERT INTO chat_messages").
		WithArgs("m1", "d1", "alice", "alice@x.com", "hi", ts).
		WillReturnRows(sqlmock.NewRows([]string{"seq"}).AddRow(int64(7)))
	mock.ExpectQuery("SELECT seq, id, document_id, sender_id, sender_email, body, created_at\\s+FROM chat_messages WHERE document_id = \\$1 ORDER BY created_at ASC, seq ASC").
		WithArgs("d1").
		WillReturnRows(sqlmock.NewRows([]string{"seq", "id", "document_id", "sender_id", "sender_email", "body", "created_at"}).
			AddRow(int64(7), "m1", "d1", "alice", "alice@x.com", "hi", ts))

	repo := NewChatRepository(db)
	require.NoError(t, repo.AppendMessage(context.Background(), msg))
	assert.Equal(t, int64(7), msg.Seq)

	history, err := repo.History(context.Background(), "d1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, *msg, history[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}
