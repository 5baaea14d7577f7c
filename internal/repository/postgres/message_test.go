package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/copperline/barback/internal/domain"
	"github.com/copperline/barback/internal/service/approval"
)

func setupTestDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	return db, mock, func() { db.Close() }
}

var messageTestColumns = []string{
	"id", "conversation_id", "direction", "body", "draft", "status",
	"provider_sid", "delivery_state", "media", "archived_media", "reply_to",
	"created_at", "approved_at", "sent_at",
}

func TestMessageRepo_Get_NotFound(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("SELECT (.+) FROM messages").
		WillReturnError(sql.ErrNoRows)

	_, err := NewMessageRepo(db).Get(context.Background(), "missing")
	if err != approval.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMessageRepo_ExistsByProviderSID(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := NewMessageRepo(db).ExistsByProviderSID(context.Background(), "SM123")
	if err != nil {
		t.Fatalf("ExistsByProviderSID() error: %v", err)
	}
	if !exists {
		t.Error("expected exists = true")
	}
}

func TestMessageRepo_Create_GeneratesID(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO messages").
		WillReturnResult(sqlmock.NewResult(1, 1))

	m := &domain.Message{
		ConversationID: "c1",
		Direction:      domain.DirectionInbound,
		Body:           "hello",
		Status:         domain.MessageReceived,
	}
	id, err := NewMessageRepo(db).Create(context.Background(), m)
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if id == "" {
		t.Error("Create() returned empty id")
	}
	if m.ID != id {
		t.Errorf("message ID not backfilled: %q vs %q", m.ID, id)
	}
}

func TestMessageRepo_History_ChronologicalOrder(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	t1 := time.Now().Add(-2 * time.Minute)
	t2 := time.Now().Add(-1 * time.Minute)

	// The query returns newest first; History must flip to reading order.
	rows := sqlmock.NewRows(messageTestColumns).
		AddRow("m2", "c1", "outbound", "reply", "reply", "sent", nil, nil, "{}", "{}", nil, t2, nil, nil).
		AddRow("m1", "c1", "inbound", "hi", "", "received", nil, nil, "{}", "{}", nil, t1, nil, nil)

	mock.ExpectQuery("SELECT (.+) FROM messages").
		WillReturnRows(rows)

	out, err := NewMessageRepo(db).History(context.Background(), "c1", 5)
	if err != nil {
		t.Fatalf("History() error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("History() returned %d messages, want 2", len(out))
	}
	if out[0].ID != "m1" || out[1].ID != "m2" {
		t.Errorf("History() order = [%s, %s], want [m1, m2]", out[0].ID, out[1].ID)
	}
}

func TestMessageRepo_MarkApproved(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec("UPDATE messages SET status = 'approved'").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := NewMessageRepo(db).MarkApproved(context.Background(), "m1", "final text"); err != nil {
		t.Fatalf("MarkApproved() error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestMessageRepo_MarkApproved_AlreadyProcessed(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	// Zero rows touched: the row already left pending_approval.
	mock.ExpectExec("UPDATE messages SET status = 'approved'").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := NewMessageRepo(db).MarkApproved(context.Background(), "m1", "final text")
	if err != approval.ErrAlreadyProcessed {
		t.Fatalf("expected ErrAlreadyProcessed, got %v", err)
	}
}

func TestMessageRepo_MarkSent_RequiresApproved(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec("UPDATE messages SET status = 'sent'").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := NewMessageRepo(db).MarkSent(context.Background(), "m1", "SM999")
	if err != approval.ErrAlreadyProcessed {
		t.Fatalf("expected ErrAlreadyProcessed, got %v", err)
	}
}

func TestMessageRepo_SetDeliveryState_UnknownSID(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec("UPDATE messages SET delivery_state").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := NewMessageRepo(db).SetDeliveryState(context.Background(), "SMunknown", "delivered")
	if err != approval.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
