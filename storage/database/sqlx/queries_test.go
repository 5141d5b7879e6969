package sqlxrepos

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/admitflow/core"
	"github.com/trezcool/admitflow/core/analytics"
	"github.com/trezcool/admitflow/core/comms"
	"github.com/trezcool/admitflow/core/joining"
	"github.com/trezcool/admitflow/core/lead"
	"github.com/trezcool/admitflow/core/user"
)

const someID = "4b5c43a5-1d4e-4a64-8bd9-53b8e1f3c2a7"

func TestNextValueQuery(t *testing.T) {
	q, args, err := nextValueQuery("enquiry:2026").ToSql()
	require.NoError(t, err)
	assert.Contains(t, q, "INSERT INTO counters (key,value) VALUES ($1,$2)")
	assert.Contains(t, q, "ON CONFLICT (key) DO UPDATE SET value = counters.value + 1 RETURNING value")
	assert.Equal(t, []interface{}{"enquiry:2026", 1}, args)
}

func TestApplyLeadFilter(t *testing.T) {
	from := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		filter   lead.QueryFilter
		wantSQL  []string
		wantArgs []interface{}
	}{
		{
			name:    "no filter",
			filter:  lead.QueryFilter{},
			wantSQL: []string{"SELECT id FROM leads"},
		},
		{
			name:     "search by name",
			filter:   lead.QueryFilter{Search: "ravi"},
			wantSQL:  []string{"name ILIKE $1", "email ILIKE $2", "enquiry_number ILIKE $3"},
			wantArgs: []interface{}{"%ravi%", "%ravi%", "%ravi%", "%ravi%"},
		},
		{
			name:     "search wildcards match literally",
			filter:   lead.QueryFilter{Search: "a_b"},
			wantSQL:  []string{`name ILIKE $1 ESCAPE '\'`, `father_name ILIKE $4 ESCAPE '\'`},
			wantArgs: []interface{}{`%a\_b%`, `%a\_b%`, `%a\_b%`, `%a\_b%`},
		},
		{
			name:     "column filter is escaped",
			filter:   lead.QueryFilter{District: "Gun%", Source: "walk_in"},
			wantSQL:  []string{`district ILIKE $1 ESCAPE '\'`, `source ILIKE $2 ESCAPE '\'`},
			wantArgs: []interface{}{`Gun\%`, `walk\_in`},
		},
		{
			name:    "search by phone digits",
			filter:  lead.QueryFilter{Search: "98480"},
			wantSQL: []string{"phone LIKE $5", "alternate_phone LIKE $6"},
		},
		{
			name:     "enquiry number prefix",
			filter:   lead.QueryFilter{EnquiryNumber: "ENQ26"},
			wantSQL:  []string{`enquiry_number LIKE $1 ESCAPE '\'`},
			wantArgs: []interface{}{"ENQ26%"},
		},
		{
			name:     "statuses & quotas",
			filter:   lead.QueryFilter{Statuses: []string{lead.StatusNew, lead.StatusCallback}, Quotas: []string{lead.QuotaNRI}},
			wantSQL:  []string{"lead_status IN ($1,$2)", "quota IN ($3)"},
			wantArgs: []interface{}{lead.StatusNew, lead.StatusCallback, lead.QuotaNRI},
		},
		{
			name:    "unassigned",
			filter:  lead.QueryFilter{Unassigned: true},
			wantSQL: []string{"assigned_to IS NULL"},
		},
		{
			name:     "assigned to wins over unassigned",
			filter:   lead.QueryFilter{AssignedTo: someID, Unassigned: true},
			wantSQL:  []string{"assigned_to = $1"},
			wantArgs: []interface{}{someID},
		},
		{
			name:    "invalid assignee matches nothing",
			filter:  lead.QueryFilter{AssignedTo: "nope"},
			wantSQL: []string{"false"},
		},
		{
			name:     "created from",
			filter:   lead.QueryFilter{CreatedFrom: from},
			wantSQL:  []string{"created_at >= $1"},
			wantArgs: []interface{}{from},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, args, err := applyLeadFilter(psql.Select("id").From("leads"), tt.filter).ToSql()
			require.NoError(t, err)
			for _, frag := range tt.wantSQL {
				assert.Contains(t, q, frag)
			}
			if tt.wantArgs != nil {
				assert.Equal(t, tt.wantArgs, args)
			}
		})
	}
}

func TestLeadPageQuery(t *testing.T) {
	ordering := core.ParseOrdering("-createdAt,name", lead.Orderings)
	q, _, err := leadPageQuery(lead.QueryFilter{}, core.NewPage(3, 25), ordering).ToSql()
	require.NoError(t, err)
	assert.Contains(t, q, "ORDER BY created_at DESC, name ASC, id ASC")
	assert.Contains(t, q, "LIMIT 25 OFFSET 50")
}

func TestPendingSMSQuery(t *testing.T) {
	q, args, err := pendingSMSQuery(200).ToSql()
	require.NoError(t, err)
	assert.Contains(t, q, "provider_message_id <> $3")
	assert.Contains(t, q, "ORDER BY sent_at ASC LIMIT 200")
	assert.ElementsMatch(t, []interface{}{comms.TypeSMS, string(core.DeliveryPending), ""}, args)
}

func TestCountLeadsQuery(t *testing.T) {
	q, err := countLeadsQuery(analytics.Filter{}, analytics.ByCounsellor)
	require.NoError(t, err)
	sql, _, err := q.ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "COALESCE(assigned_to::text, '') AS key")
	assert.Contains(t, sql, "MAX(assigned_to_name) AS label")
	assert.Contains(t, sql, "GROUP BY assigned_to")

	_, err = countLeadsQuery(analytics.Filter{}, "name; DROP TABLE leads")
	assert.Error(t, err)
}

func TestEscapeLike(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ravi", "ravi"},
		{"50%", `50\%`},
		{"a_b", `a\_b`},
		{`c:\dir`, `c:\\dir`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, escapeLike(tt.in), tt.in)
	}
}

func TestSearchQueriesEscapeWildcards(t *testing.T) {
	q, args, err := userFilterQuery(&user.QueryFilter{Search: "50%"}).ToSql()
	require.NoError(t, err)
	assert.Contains(t, q, `username ILIKE $2 ESCAPE '\'`)
	assert.Equal(t, []interface{}{`%50\%%`, `%50\%%`, `%50\%%`}, args)

	q, args, err = applyAdmissionFilter(psql.Select("id").From("admissions"), joining.AdmissionFilter{Search: "ADM_"}).ToSql()
	require.NoError(t, err)
	assert.Contains(t, q, `payload->'student'->>'fullName' ILIKE $2 ESCAPE '\'`)
	assert.Equal(t, []interface{}{`%ADM\_%`, `%ADM\_%`}, args)
}

func TestValidIDs(t *testing.T) {
	assert.Equal(t, []string{someID}, validIDs("1", someID, ""))
	assert.Empty(t, validIDs("x"))
}
