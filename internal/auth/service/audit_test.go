package service

import (
	"context"
	"log/slog"
	"testing"

	"github.com/loandocs/loandocs/internal/auth/domain"
	"github.com/loandocs/loandocs/internal/auth/store/drivers/sqlite"
	"github.com/stretchr/testify/require"
)

func TestAuditServiceDrainsOnClose(t *testing.T) {
	ctx := context.Background()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	audit := NewAuditService(st, slog.Default(), 16)

	for i := 0; i < 10; i++ {
		audit.Record(domain.AuditEvent{
			SessionID: "sess-1",
			EventType: domain.AuditCodeIssued,
			Success:   true,
		})
	}

	// Close blocks until the queue is flushed.
	audit.Close()

	events, err := audit.List(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, events, 10)
	for _, ev := range events {
		require.NotEmpty(t, ev.ID)
		require.False(t, ev.CreatedAt.IsZero())
	}

	// Records after close are dropped silently.
	audit.Record(domain.AuditEvent{SessionID: "sess-1", EventType: domain.AuditCodeIssued})
	events, err = audit.List(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, events, 10)
}
