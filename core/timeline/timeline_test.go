package timeline

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/admitflow/core/comms"
	"github.com/trezcool/admitflow/core/lead"
)

var t0 = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

func at(mins int) time.Time { return t0.Add(time.Duration(mins) * time.Minute) }

func call(id, number string, mins int) comms.CommunicationRecord {
	return comms.CommunicationRecord{ID: id, Type: comms.TypeCall, ContactNumber: number, CallOutcome: comms.OutcomeAnswered, SentAt: at(mins)}
}

func sms(id, number string, mins int) comms.CommunicationRecord {
	return comms.CommunicationRecord{ID: id, Type: comms.TypeSMS, ContactNumber: number, TemplateName: "Welcome", SentAt: at(mins)}
}

func find(t *testing.T, items []Item, id string) Item {
	t.Helper()
	for _, it := range items {
		if it.ID == id {
			return it
		}
	}
	t.Fatalf("item %q not found", id)
	return Item{}
}

func TestBuild_callAboveEarlierStatusChange(t *testing.T) {
	l := lead.Lead{ID: "l1", EnquiryNumber: "ENQ26000001", CreatedAt: at(0)}
	logs := []lead.ActivityLog{
		{ID: "s1", Type: lead.ActivityStatusChange, OldStatus: lead.StatusNew, NewStatus: lead.StatusConfirmed, CreatedAt: at(10)},
	}
	recs := []comms.CommunicationRecord{call("c1", "9999999999", 20)}

	items := Build(l, logs, recs)

	require.Len(t, items, 3)
	assert.Equal(t, "c1", items[0].ID)
	assert.Equal(t, "s1", items[1].ID)
	assert.Equal(t, KindEnquiryCreated, items[2].Kind)
	assert.Equal(t, "1st Call", items[0].Label)
	assert.Equal(t, "1st Call to +919999999999", items[0].Title)
	assert.Equal(t, "Status changed from New to Confirmed", items[1].Description)
}

func TestBuild_sequencesPerContactNumber(t *testing.T) {
	l := lead.Lead{ID: "l1", CreatedAt: at(0)}
	recs := []comms.CommunicationRecord{
		call("a3", "9000000001", 30),
		call("b1", "+91 90000 00002", 15),
		call("a1", "9000000001", 5),
		sms("s1", "9000000001", 12),
		call("a2", "09000000001", 20),
		call("b2", "9000000002", 40),
		sms("s2", "9000000001", 50),
	}

	items := Build(l, nil, recs)

	// calls and SMS to one number share a single sequence
	want := map[string]string{
		"a1": "1st Call", "s1": "2nd SMS", "a2": "3rd Call", "a3": "4th Call", "s2": "5th SMS",
		"b1": "1st Call", "b2": "2nd Call",
	}
	for id, label := range want {
		assert.Equal(t, label, find(t, items, id).Label, id)
	}
	assert.Equal(t, "2nd SMS to +919000000001", find(t, items, "s1").Title)

	// ordinals strictly increase with time within a number
	var prev Item
	for _, id := range []string{"a1", "s1", "a2", "a3", "s2"} {
		cur := find(t, items, id)
		if prev.ID != "" {
			assert.True(t, prev.Date.Before(cur.Date), id)
			assert.Less(t, prev.Sequence, cur.Sequence, id)
		}
		prev = cur
	}
}

func TestBuild_callAndSMSToSameNumberAreNotBothFirst(t *testing.T) {
	items := Build(lead.Lead{ID: "l1", CreatedAt: at(0)}, nil, []comms.CommunicationRecord{
		sms("s1", "9848022338", 10),
		call("c1", "+91 98480 22338", 5),
	})
	assert.Equal(t, "1st Call", find(t, items, "c1").Label)
	assert.Equal(t, "2nd SMS", find(t, items, "s1").Label)
}

func TestBuild_sortedDescendingRegardlessOfInputOrder(t *testing.T) {
	l := lead.Lead{ID: "l1", CreatedAt: at(0), AssignedTo: "u1", AssignedToName: "Asha", AssignedAt: at(1)}
	logs := []lead.ActivityLog{
		{ID: "s1", Type: lead.ActivityStatusChange, OldStatus: lead.StatusNew, NewStatus: lead.StatusContacted, CreatedAt: at(7)},
		{ID: "q1", Type: lead.ActivityQuotaChange, OldQuota: lead.QuotaNotApplicable, NewQuota: lead.QuotaNRI, CreatedAt: at(3)},
		{ID: "cm1", Type: lead.ActivityComment, Comment: "call after 6pm", CreatedAt: at(9)},
		{ID: "f1", Type: lead.ActivityFieldUpdate, Metadata: map[string]interface{}{lead.MetaFields: []interface{}{"email", "village"}}, CreatedAt: at(4)},
	}
	recs := []comms.CommunicationRecord{call("c1", "9000000001", 2), sms("m1", "9000000001", 8), call("c2", "9000000001", 6)}

	rnd := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		rnd.Shuffle(len(logs), func(i, j int) { logs[i], logs[j] = logs[j], logs[i] })
		rnd.Shuffle(len(recs), func(i, j int) { recs[i], recs[j] = recs[j], recs[i] })

		items := Build(l, logs, recs)
		require.Len(t, items, 9)
		for k := 1; k < len(items); k++ {
			assert.False(t, items[k].Date.After(items[k-1].Date), "items not sorted desc at %d", k)
		}
	}

	items := Build(l, logs, recs)
	assert.Equal(t, "Updated email, village", find(t, items, "f1").Description)
	assert.Equal(t, "assignment-l1", items[len(items)-2].ID)
}

func TestBuild_assignmentLogReplacesLeadAssignment(t *testing.T) {
	l := lead.Lead{ID: "l1", CreatedAt: at(0), AssignedTo: "u1", AssignedToName: "Asha", AssignedAt: at(5)}
	logs := []lead.ActivityLog{{
		ID:        "as1",
		Type:      lead.ActivityStatusChange,
		OldStatus: lead.StatusNew,
		NewStatus: lead.StatusNew,
		Metadata:  map[string]interface{}{lead.MetaAssignment: true, lead.MetaAssignedToName: "Asha"},
		ActorName: "Manager",
		CreatedAt: at(5),
	}}

	items := Build(l, logs, nil)

	require.Len(t, items, 2)
	assert.Equal(t, KindAssignment, items[0].Kind)
	assert.Equal(t, "Assigned to Counsellor", items[0].Title)
	assert.Equal(t, "Assigned to Asha", items[0].Description)
	for _, it := range items {
		assert.NotEqual(t, KindStatusChange, it.Kind)
	}
}

func TestBuild_tieKeepsConcatenationOrder(t *testing.T) {
	l := lead.Lead{ID: "l1", CreatedAt: at(0)}
	logs := []lead.ActivityLog{
		{ID: "cm1", Type: lead.ActivityComment, Comment: "x", CreatedAt: at(5)},
		{ID: "s1", Type: lead.ActivityStatusChange, OldStatus: lead.StatusNew, NewStatus: lead.StatusCallback, CreatedAt: at(5)},
	}
	recs := []comms.CommunicationRecord{call("c1", "9000000001", 5)}

	items := Build(l, logs, recs)

	require.Len(t, items, 4)
	assert.Equal(t, []string{"c1", "s1", "cm1"}, []string{items[0].ID, items[1].ID, items[2].ID})
}

func TestBuild_placeholders(t *testing.T) {
	items := Build(lead.Lead{}, []lead.ActivityLog{{ID: "s1", Type: lead.ActivityStatusChange}}, []comms.CommunicationRecord{{ID: "c1", Type: comms.TypeCall}})

	require.Len(t, items, 3)
	c1 := find(t, items, "c1")
	assert.Equal(t, "1st Call to Unknown number", c1.Title)
	assert.Equal(t, "Unknown", c1.ActorName)
	assert.Equal(t, "Status changed from N/A to N/A", find(t, items, "s1").Description)
}

func TestOrdinal(t *testing.T) {
	tests := map[int]string{1: "1st", 2: "2nd", 3: "3rd", 4: "4th", 11: "11th", 12: "12th", 13: "13th", 21: "21st", 22: "22nd", 101: "101st", 111: "111th"}
	for n, want := range tests {
		assert.Equal(t, want, Ordinal(n))
	}
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "45s", FormatDuration(45))
	assert.Equal(t, "1m 05s", FormatDuration(65))
}
