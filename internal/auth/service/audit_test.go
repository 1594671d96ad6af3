package service

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/opsdeskhq/opsdesk/internal/auth/domain"
	"github.com/opsdeskhq/opsdesk/internal/auth/store"
	"github.com/opsdeskhq/opsdesk/internal/auth/store/drivers/sqlite"
)

func newAuditTestStore(t *testing.T) store.Store {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)",
		filepath.Join(t.TempDir(), "auth.db"))
	st, err := sqlite.NewStore(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())
	return st
}

func TestAuditServicePersistsQueuedEvents(t *testing.T) {
	ctx := context.Background()
	st := newAuditTestStore(t)

	svc := NewAuditService(st, slog.New(slog.DiscardHandler), 8)
	svc.Start()

	for i := 0; i < 3; i++ {
		svc.Record(domain.AuditEvent{
			Action:     domain.AuditLogin,
			EntityType: "PRINCIPAL",
			EntityID:   fmt.Sprintf("principal-%d", i),
		})
	}

	// Stop drains the queue before returning.
	svc.Stop()

	events, err := st.AuditEvents().ListRecentAuditEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 3)

	for _, e := range events {
		require.NotEmpty(t, e.ID, "ids are filled in at enqueue time")
		require.Equal(t, "unknown", e.Origin)
		require.False(t, e.CreatedAt.IsZero())
	}
}

func TestAuditServiceDropsWhenQueueFull(t *testing.T) {
	st := newAuditTestStore(t)

	// Worker never started, so the queue only holds its capacity.
	svc := NewAuditService(st, slog.New(slog.DiscardHandler), 2)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			svc.Record(domain.AuditEvent{Action: domain.AuditLogout, EntityType: "PRINCIPAL", EntityID: "p"})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Record must never block, even with a full queue")
	}
	require.Len(t, svc.events, 2)
}
