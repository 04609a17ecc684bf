package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/ajo/internal/gateway"
	"github.com/mmynk/ajo/internal/lock"
	"github.com/mmynk/ajo/internal/metrics"
	"github.com/mmynk/ajo/internal/models"
	"github.com/mmynk/ajo/internal/storage"
	"github.com/mmynk/ajo/internal/storage/sqlite"
)

// fakeGateway records calls and answers through overridable hooks.
type fakeGateway struct {
	mu        sync.Mutex
	charges   []gateway.ChargeRequest
	transfers []gateway.TransferRequest

	onCharge   func(ctx context.Context, req gateway.ChargeRequest) (*gateway.ChargeResult, error)
	onTransfer func(ctx context.Context, req gateway.TransferRequest) (*gateway.TransferResult, error)
}

func (g *fakeGateway) ChargeAuthorization(ctx context.Context, req gateway.ChargeRequest) (*gateway.ChargeResult, error) {
	g.mu.Lock()
	g.charges = append(g.charges, req)
	hook := g.onCharge
	g.mu.Unlock()
	if hook != nil {
		return hook(ctx, req)
	}
	return &gateway.ChargeResult{Reference: req.Reference, Status: "success"}, nil
}

func (g *fakeGateway) Transfer(ctx context.Context, req gateway.TransferRequest) (*gateway.TransferResult, error) {
	g.mu.Lock()
	g.transfers = append(g.transfers, req)
	hook := g.onTransfer
	g.mu.Unlock()
	if hook != nil {
		return hook(ctx, req)
	}
	return &gateway.TransferResult{TransferCode: "TRF_" + req.Reference, Reference: req.Reference, Status: "pending"}, nil
}

func (g *fakeGateway) chargeCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.charges)
}

func (g *fakeGateway) transferCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.transfers)
}

func rejectCharges(ctx context.Context, req gateway.ChargeRequest) (*gateway.ChargeResult, error) {
	return nil, &gateway.RejectedError{StatusCode: 200, Message: "Insufficient Funds"}
}

func rejectTransfers(ctx context.Context, req gateway.TransferRequest) (*gateway.TransferResult, error) {
	return nil, &gateway.RejectedError{StatusCode: 400, Message: "Recipient account is invalid"}
}

func hangTransfers(ctx context.Context, req gateway.TransferRequest) (*gateway.TransferResult, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type fixture struct {
	t           *testing.T
	ctx         context.Context
	store       *sqlite.SQLiteStore
	gw          *fakeGateway
	rec         *metrics.Recorder
	engine      *Engine
	now         time.Time
	group       *models.Group
	members     []*models.Member
	memberships []*models.Membership
}

func newTestStore(t *testing.T) *sqlite.SQLiteStore {
	t.Helper()
	tempDir, err := os.MkdirTemp("", "ajo-engine-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	store, err := sqlite.New(filepath.Join(tempDir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// newFixture seeds an active weekly group of n members, each due an hour ago
// with a default card and a verified bank account.
func newFixture(t *testing.T, n int) *fixture {
	t.Helper()
	f := &fixture{
		t:     t,
		ctx:   context.Background(),
		store: newTestStore(t),
		gw:    &fakeGateway{},
		rec:   metrics.New(),
		now:   time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.engine = New(Config{GatewayTimeout: 50 * time.Millisecond, ChargeLockTTL: time.Minute},
		f.store, f.gw, lock.NewMemoryLocker(), f.rec, logger)
	f.engine.now = func() time.Time { return f.now }

	f.group = &models.Group{
		Name:               "Market Women",
		CreatorID:          "creator",
		ContributionAmount: 100000,
		CycleType:          models.CycleWeekly,
		MaxMembers:         10,
		FeePercentage:      decimal.RequireFromString("6.25"),
	}
	require.NoError(t, f.store.CreateGroup(f.ctx, f.group))

	due := f.now.Add(-time.Hour)
	for i := 1; i <= n; i++ {
		member := &models.Member{
			Email:         fmt.Sprintf("m%d@example.com", i),
			DisplayName:   fmt.Sprintf("Member %d", i),
			RecipientCode: fmt.Sprintf("RCP_%d", i),
		}
		require.NoError(t, f.store.CreateMember(f.ctx, member))
		require.NoError(t, f.store.CreateInstrument(f.ctx, &models.PaymentInstrument{
			MemberID:          member.ID,
			AuthorizationCode: fmt.Sprintf("AUTH_%d", i),
			Brand:             "visa",
			Last4:             "4081",
			IsDefault:         true,
			IsActive:          true,
		}))
		m := &models.Membership{
			GroupID:       f.group.ID,
			MemberID:      member.ID,
			Position:      i,
			IsActive:      true,
			NextDebitDate: &due,
		}
		require.NoError(t, f.store.CreateMembership(f.ctx, m))
		f.members = append(f.members, member)
		f.memberships = append(f.memberships, m)
	}
	return f
}

func (f *fixture) membership(i int) *models.Membership {
	f.t.Helper()
	m, err := f.store.GetMembership(f.ctx, f.memberships[i].ID)
	require.NoError(f.t, err)
	return m
}

func (f *fixture) reloadGroup() *models.Group {
	f.t.Helper()
	g, err := f.store.GetGroup(f.ctx, f.group.ID)
	require.NoError(f.t, err)
	return g
}

// payCycle writes a completed contribution for every active membership.
func (f *fixture) payCycle(cycle int) {
	f.t.Helper()
	for i, m := range f.memberships {
		if !f.membership(i).IsActive {
			continue
		}
		require.NoError(f.t, f.store.CreateLedgerEntry(f.ctx, &models.LedgerEntry{
			MemberID:          m.MemberID,
			GroupID:           m.GroupID,
			MembershipID:      m.ID,
			Type:              models.EntryContribution,
			Amount:            f.group.ContributionAmount,
			Status:            models.StatusCompleted,
			ProviderReference: fmt.Sprintf("paid-%s-%d", m.ID, cycle),
			Metadata: models.LedgerMetadata{Contribution: &models.ContributionMetadata{
				Cycle: cycle, ChargeType: models.ChargeScheduled,
			}},
		}))
	}
}

func (f *fixture) payouts(cycle int) []*models.LedgerEntry {
	f.t.Helper()
	entries, err := f.store.ListLedgerEntries(f.ctx, storage.LedgerFilter{
		GroupID: f.group.ID,
		Type:    models.EntryPayout,
		Cycle:   cycle,
	})
	require.NoError(f.t, err)
	return entries
}
