package inmemdb

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/admitflow/core"
	"github.com/trezcool/admitflow/core/comms"
	"github.com/trezcool/admitflow/core/lead"
)

func newLead(name string, created time.Time) lead.Lead {
	return lead.Lead{
		ID:         uuid.NewString(),
		Name:       name,
		Phone:      "9848022338",
		LeadStatus: lead.StatusNew,
		Quota:      lead.QuotaNotApplicable,
		CreatedAt:  created,
		UpdatedAt:  created,
	}
}

func TestSequencer_Next(t *testing.T) {
	seq := NewSequencer(Open())
	ctx := context.Background()

	for want := 1; want <= 3; want++ {
		got, err := seq.Next(ctx, "enquiry:2026")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	got, err := seq.Next(ctx, "enquiry:2027")
	require.NoError(t, err)
	assert.Equal(t, 1, got, "counters are per key")
}

func TestTransactor_InTx(t *testing.T) {
	db := Open()
	tx := NewTransactor(db)
	repo := NewLeadRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("commit", func(t *testing.T) {
		err := tx.InTx(ctx, func(ctx context.Context) error {
			_, err := repo.CreateLead(ctx, newLead("kept", now))
			return err
		})
		require.NoError(t, err)
		_, total, _ := repo.QueryLeads(ctx, lead.QueryFilter{}, core.NewPage(1, 10), nil)
		assert.Equal(t, 1, total)
	})

	t.Run("rollback", func(t *testing.T) {
		boom := errors.New("boom")
		err := tx.InTx(ctx, func(ctx context.Context) error {
			if _, err := repo.CreateLead(ctx, newLead("dropped", now)); err != nil {
				return err
			}
			// nested units of work join the outer one
			return tx.InTx(ctx, func(ctx context.Context) error { return boom })
		})
		assert.Equal(t, boom, err)
		_, total, _ := repo.QueryLeads(ctx, lead.QueryFilter{}, core.NewPage(1, 10), nil)
		assert.Equal(t, 1, total)
	})
}

func TestTransactor_RollbackKeepsOutsideWrites(t *testing.T) {
	db := Open()
	tx := NewTransactor(db)
	recs := NewCommsRepository(db)
	ctx := context.Background()
	boom := errors.New("boom")

	var wg sync.WaitGroup
	err := tx.InTx(ctx, func(txCtx context.Context) error {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// another request, outside the unit of work
			assert.NoError(t, recs.CreateRecords(ctx, comms.CommunicationRecord{ID: "outside", LeadID: "l1", Type: comms.TypeCall}))
		}()
		time.Sleep(20 * time.Millisecond)
		require.NoError(t, recs.CreateRecords(txCtx, comms.CommunicationRecord{ID: "inside", LeadID: "l1", Type: comms.TypeCall}))
		return boom
	})
	assert.Equal(t, boom, err)
	wg.Wait()

	history, err := recs.QueryRecords(ctx, "l1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "outside", history[0].ID)
}

func TestLeadRepository_DeleteCascades(t *testing.T) {
	db := Open()
	leads := NewLeadRepository(db)
	recs := NewCommsRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	var ids []string
	for i := 0; i < 10; i++ {
		l, err := leads.CreateLead(ctx, newLead("lead", now.Add(time.Duration(i)*time.Minute)))
		require.NoError(t, err)
		ids = append(ids, l.ID)
		require.NoError(t, leads.CreateActivityLogs(ctx, lead.ActivityLog{ID: uuid.NewString(), LeadID: l.ID, Type: lead.ActivityComment}))
		require.NoError(t, recs.CreateRecords(ctx, comms.CommunicationRecord{ID: uuid.NewString(), LeadID: l.ID, Type: comms.TypeCall}))
	}

	n, err := leads.DeleteLeadsByID(ctx, ids[0], ids[1], ids[2], "unknown")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, total, err := leads.QueryLeads(ctx, lead.QueryFilter{}, core.NewPage(1, 20), nil)
	require.NoError(t, err)
	assert.Equal(t, 7, total)

	logs, _ := leads.QueryActivityLogs(ctx, ids[0])
	assert.Empty(t, logs)
	history, _ := recs.QueryRecords(ctx, ids[0])
	assert.Empty(t, history)
	history, _ = recs.QueryRecords(ctx, ids[5])
	assert.Len(t, history, 1)
}

func TestLeadRepository_QueryLeads(t *testing.T) {
	db := Open()
	repo := NewLeadRepository(db)
	ctx := context.Background()
	base := time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)

	a := newLead("Anil Kumar", base)
	a.EnquiryNumber, a.District, a.AssignedTo = "ENQ26000001", "Guntur", "c1"
	b := newLead("Bhavani", base.Add(time.Hour))
	b.EnquiryNumber, b.District, b.LeadStatus, b.Phone = "ENQ26000002", "Krishna", lead.StatusCallback, "9123456789"
	c := newLead("Chaitanya", base.Add(2*time.Hour))
	c.EnquiryNumber, c.District, c.Quota = "ENQ26000003", "guntur", lead.QuotaNRI
	for _, l := range []lead.Lead{a, b, c} {
		_, err := repo.CreateLead(ctx, l)
		require.NoError(t, err)
	}

	tests := []struct {
		name    string
		filter  lead.QueryFilter
		order   []core.DBOrdering
		wantIDs []string
	}{
		{"default newest first", lead.QueryFilter{}, lead.DefaultOrdering, []string{c.ID, b.ID, a.ID}},
		{"by name asc", lead.QueryFilter{}, []core.DBOrdering{{Field: "name", Ascending: true}}, []string{a.ID, b.ID, c.ID}},
		{"search name", lead.QueryFilter{Search: "bhav"}, nil, []string{b.ID}},
		{"search phone", lead.QueryFilter{Search: "91234"}, nil, []string{b.ID}},
		{"enquiry prefix", lead.QueryFilter{EnquiryNumber: "ENQ2600000"}, lead.DefaultOrdering, []string{c.ID, b.ID, a.ID}},
		{"district case-insensitive", lead.QueryFilter{District: "GUNTUR"}, lead.DefaultOrdering, []string{c.ID, a.ID}},
		{"status", lead.QueryFilter{Statuses: []string{lead.StatusCallback}}, nil, []string{b.ID}},
		{"quota", lead.QueryFilter{Quotas: []string{lead.QuotaNRI}}, nil, []string{c.ID}},
		{"assigned", lead.QueryFilter{AssignedTo: "c1"}, nil, []string{a.ID}},
		{"unassigned", lead.QueryFilter{Unassigned: true}, lead.DefaultOrdering, []string{c.ID, b.ID}},
		{"created from", lead.QueryFilter{CreatedFrom: base.Add(90 * time.Minute)}, nil, []string{c.ID}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			leads, total, err := repo.QueryLeads(ctx, tt.filter, core.NewPage(1, 10), tt.order)
			require.NoError(t, err)
			assert.Equal(t, len(tt.wantIDs), total)
			var ids []string
			for _, l := range leads {
				ids = append(ids, l.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}

	t.Run("pagination", func(t *testing.T) {
		leads, total, err := repo.QueryLeads(ctx, lead.QueryFilter{}, core.NewPage(2, 2), lead.DefaultOrdering)
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		require.Len(t, leads, 1)
		assert.Equal(t, a.ID, leads[0].ID)
	})
}
