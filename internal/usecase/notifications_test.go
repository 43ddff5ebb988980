package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/V4T54L/notification-service/internal/domain"
	"github.com/V4T54L/notification-service/internal/domain/mocks"
)

func seededRepo() *mocks.MockNotificationRepository {
	return &mocks.MockNotificationRepository{Inserted: []domain.Notification{
		{ID: "n1", UserID: "alice", Content: "first"},
		{ID: "n2", UserID: "alice", Content: "second", IsRead: true},
		{ID: "n3", UserID: "bob", Content: "third"},
		{ID: "n4", UserID: "alice", Content: "fourth"},
	}}
}

func TestNotificationUseCase_List(t *testing.T) {
	uc := NewNotificationUseCase(seededRepo(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	items, err := uc.List(context.Background(), "alice", 0)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 notifications, got %d", len(items))
	}
	if items[0].ID != "n4" {
		t.Errorf("expected newest first, got %s", items[0].ID)
	}

	items, _ = uc.List(context.Background(), "alice", 2)
	if len(items) != 2 {
		t.Errorf("expected limit to apply, got %d", len(items))
	}

	items, _ = uc.List(context.Background(), "nobody", 5)
	if items == nil || len(items) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", items)
	}

	if _, err := uc.List(context.Background(), "", 5); !errors.Is(err, domain.ErrMissingUser) {
		t.Errorf("expected ErrMissingUser, got %v", err)
	}
}

func TestNotificationUseCase_SetReadState(t *testing.T) {
	testCases := []struct {
		name    string
		id      string
		actor   string
		isRead  bool
		wantErr error
	}{
		{"Owner marks read", "n1", "alice", true, nil},
		{"Owner marks unread", "n2", "alice", false, nil},
		{"No actor skips ownership check", "n3", "", true, nil},
		{"Foreign actor is rejected", "n3", "alice", true, domain.ErrForbidden},
		{"Unknown id", "missing", "alice", true, domain.ErrNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			repo := seededRepo()
			uc := NewNotificationUseCase(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))

			n, err := uc.SetReadState(context.Background(), tc.id, tc.actor, tc.isRead)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("got error %v want %v", err, tc.wantErr)
			}
			if tc.wantErr != nil {
				if len(repo.ReadUpdates) != 0 {
					t.Errorf("expected no mutation, got %v", repo.ReadUpdates)
				}
				return
			}
			if n.IsRead != tc.isRead {
				t.Errorf("got isRead %v want %v", n.IsRead, tc.isRead)
			}
		})
	}
}

func TestNotificationUseCase_MarkAllRead(t *testing.T) {
	repo := seededRepo()
	uc := NewNotificationUseCase(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))

	changed, err := uc.MarkAllRead(context.Background(), "alice")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if changed != 2 {
		t.Errorf("expected 2 changed, got %d", changed)
	}
	unread, _ := uc.CountUnread(context.Background(), "alice")
	if unread != 0 {
		t.Errorf("expected 0 unread after mark all, got %d", unread)
	}
	bobUnread, _ := uc.CountUnread(context.Background(), "bob")
	if bobUnread != 1 {
		t.Errorf("expected other users untouched, got %d unread for bob", bobUnread)
	}

	if _, err := uc.MarkAllRead(context.Background(), ""); !errors.Is(err, domain.ErrMissingUser) {
		t.Errorf("expected ErrMissingUser, got %v", err)
	}
}

func TestNotificationUseCase_Delete(t *testing.T) {
	t.Run("Foreign actor", func(t *testing.T) {
		repo := seededRepo()
		uc := NewNotificationUseCase(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))

		if err := uc.Delete(context.Background(), "n3", "alice"); !errors.Is(err, domain.ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
		if repo.InsertedCount() != 4 {
			t.Errorf("expected nothing deleted, got %d left", repo.InsertedCount())
		}
	})

	t.Run("Owner", func(t *testing.T) {
		repo := seededRepo()
		uc := NewNotificationUseCase(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))

		if err := uc.Delete(context.Background(), "n3", "bob"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(repo.Deleted) != 1 || repo.Deleted[0] != "n3" {
			t.Errorf("unexpected deletions: %v", repo.Deleted)
		}
	})

	t.Run("Store failure", func(t *testing.T) {
		repo := seededRepo()
		repo.FindErr = &domain.StoreError{Op: "find", Err: errors.New("timeout")}
		uc := NewNotificationUseCase(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))

		err := uc.Delete(context.Background(), "n1", "alice")
		var storeErr *domain.StoreError
		if !errors.As(err, &storeErr) {
			t.Errorf("expected StoreError, got %v", err)
		}
	})
}
