package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/trezcool/admitflow/core/analytics"
)

func newStatsCmd(a *app) *cobra.Command {
	var from, to, assignedTo string
	cmd := &cobra.Command{
		Use:     "stats",
		Short:   "Print lead, admission & communication figures",
		Args:    cobra.NoArgs,
		PreRunE: a.requireLogin,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q := map[string]string{"assignedTo": assignedTo}
			for name, val := range map[string]string{"from": from, "to": to} {
				if val == "" {
					continue
				}
				t, err := time.ParseInLocation("2006-01-02", val, time.Local)
				if err != nil {
					return errors.Errorf("--%s: expected YYYY-MM-DD, got %q", name, val)
				}
				if name == "to" {
					t = t.Add(24*time.Hour - time.Nanosecond)
				}
				q[name] = t.UTC().Format(time.RFC3339)
			}

			ov, err := a.api.Overview(cmd.Context(), q)
			if err != nil {
				return err
			}
			printOverview(a, ov)
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "first day, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "last day, YYYY-MM-DD")
	cmd.Flags().StringVar(&assignedTo, "assigned-to", "", "counsellor ID (managers only)")
	return cmd
}

func printOverview(a *app, ov analytics.Overview) {
	fmt.Fprintf(a.out, "Leads: %d (%d assigned, %d unassigned)\n", ov.TotalLeads, ov.AssignedLeads, ov.UnassignedLeads)
	fmt.Fprintf(a.out, "Admissions: %d (%.1f%% conversion)\n", ov.Admissions, ov.ConversionRate)
	c := ov.Communications
	fmt.Fprintf(a.out, "Calls: %d, SMS: %d (%d delivered, %d failed, %d pending)\n",
		c.TotalCalls, c.TotalSMS, c.SMSSuccess, c.SMSFailed, c.SMSPending)

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, group := range []struct {
		title   string
		buckets []analytics.Bucket
	}{
		{"By status", ov.ByStatus},
		{"By quota", ov.ByQuota},
		{"By source", ov.BySource},
		{"By counsellor", ov.ByCounsellor},
	} {
		if len(group.buckets) == 0 {
			continue
		}
		fmt.Fprintf(tw, "\n%s\t\n", group.title)
		for _, b := range group.buckets {
			fmt.Fprintf(tw, "  %s\t%d\n", orDash(firstLabel(b)), b.Count)
		}
	}
	_ = tw.Flush()
}

func firstLabel(b analytics.Bucket) string {
	if b.Label != "" {
		return b.Label
	}
	return b.Key
}
