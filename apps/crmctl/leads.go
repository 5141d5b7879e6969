package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/trezcool/admitflow/client/selection"
	"github.com/trezcool/admitflow/client/statusflow"
	"github.com/trezcool/admitflow/core/user"
)

// leadFilters are the column filters shared by the lead listing commands.
type leadFilters struct {
	search     string
	enquiry    string
	statuses   []string
	quotas     []string
	district   string
	course     string
	source     string
	assignedTo string
	unassigned bool
}

func (lf *leadFilters) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVarP(&lf.search, "search", "s", "", "name, phone or email contains")
	fs.StringVar(&lf.enquiry, "enquiry", "", "enquiry number prefix")
	fs.StringSliceVar(&lf.statuses, "status", nil, "lead status (repeatable)")
	fs.StringSliceVar(&lf.quotas, "quota", nil, "quota (repeatable)")
	fs.StringVar(&lf.district, "district", "", "district")
	fs.StringVar(&lf.course, "course", "", "course interested")
	fs.StringVar(&lf.source, "source", "", "lead source")
	fs.StringVar(&lf.assignedTo, "assigned-to", "", "counsellor ID")
	fs.BoolVar(&lf.unassigned, "unassigned", false, "only leads without a counsellor")
}

// columns returns the filters keyed by API query parameter.
func (lf *leadFilters) columns() map[string]string {
	cols := map[string]string{
		"leadStatus":       strings.Join(lf.statuses, ","),
		"quota":            strings.Join(lf.quotas, ","),
		"district":         lf.district,
		"courseInterested": lf.course,
		"source":           lf.source,
		"assignedTo":       lf.assignedTo,
	}
	if lf.unassigned {
		cols["unassigned"] = "true"
	}
	for k, v := range cols {
		if v == "" {
			delete(cols, k)
		}
	}
	return cols
}

func (lf *leadFilters) query() map[string]string {
	q := lf.columns()
	if lf.search != "" {
		q["search"] = lf.search
	}
	if lf.enquiry != "" {
		q["enquiryNumber"] = lf.enquiry
	}
	return q
}

func newLeadsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:               "leads",
		Short:             "List, inspect and update leads",
		PersistentPreRunE: a.requireLogin,
	}
	cmd.AddCommand(
		newLeadsListCmd(a),
		newLeadsBrowseCmd(a),
		newLeadsIDsCmd(a),
		newLeadsShowCmd(a),
		newLeadsTimelineCmd(a),
		newLeadsStatusCmd(a),
		newLeadsDeleteCmd(a),
		newLeadsAssignCmd(a),
	)
	return cmd
}

func newLeadsListCmd(a *app) *cobra.Command {
	var (
		filters     leadFilters
		page, limit int
		ordering    string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print one page of leads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q := filters.query()
			q["page"] = strconv.Itoa(page)
			q["limit"] = strconv.Itoa(a.prefs.PreferredPageSize(a.conf.Client.PageSize))
			if limit > 0 {
				q["limit"] = strconv.Itoa(limit)
			}
			if ordering != "" {
				q["ordering"] = ordering
			}
			res, err := a.api.ListLeads(cmd.Context(), q)
			if err != nil {
				return err
			}
			printLeads(a.out, res.Items, res.Meta)
			return nil
		},
	}
	filters.register(cmd)
	cmd.Flags().IntVarP(&page, "page", "p", 1, "page number")
	cmd.Flags().IntVarP(&limit, "limit", "l", 0, "page size (default: saved preference)")
	cmd.Flags().StringVar(&ordering, "ordering", "", "e.g. -createdAt, name")
	return cmd
}

func newLeadsIDsCmd(a *app) *cobra.Command {
	var filters leadFilters
	cmd := &cobra.Command{
		Use:   "ids",
		Short: "Print the ID of every matching lead",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ids, err := a.api.LeadIDs(cmd.Context(), filters.query())
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Fprintln(a.out, id)
			}
			return nil
		},
	}
	filters.register(cmd)
	return cmd
}

func newLeadsShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show LEAD_ID",
		Short: "Print a lead with its contact summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := a.api.GetLead(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printLead(a.out, l)

			sum, err := a.api.LeadSummary(cmd.Context(), l.ID)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "\n%d call(s), %d SMS (%d delivered), %d activity log(s), last contact %s\n",
				sum.Calls, sum.SMS, sum.SMSDelivered, sum.Activities, formatLastContact(sum.LastContactAt))
			return nil
		},
	}
}

func newLeadsTimelineCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "timeline LEAD_ID",
		Short: "Print everything that happened to a lead, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := a.api.Timeline(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printTimeline(a.out, items)
			return nil
		},
	}
}

func newLeadsStatusCmd(a *app) *cobra.Command {
	var (
		status, quota, comment string
		yes                    bool
	)
	cmd := &cobra.Command{
		Use:   "status LEAD_ID",
		Short: "Change a lead's status or quota, or add a comment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			l, err := a.api.GetLead(ctx, args[0])
			if err != nil {
				return err
			}

			flow := statusflow.New(a.api, l)
			if status != "" {
				flow.SetStatus(status)
			}
			if quota != "" {
				flow.SetQuota(quota)
			}
			flow.SetComment(comment)

			out, err := flow.Submit(ctx)
			if err != nil {
				return err
			}
			if out.NeedsConfirmation {
				ok := yes
				if !ok {
					q := fmt.Sprintf("Change status of %s from %q to %q?", l.EnquiryNumber, l.LeadStatus, flow.Draft().NewStatus)
					if ok, err = a.confirm(q); err != nil {
						return err
					}
				}
				if !ok {
					flow.Cancel()
					fmt.Fprintln(a.out, "Cancelled")
					return nil
				}
				if out, err = flow.Confirm(ctx); err != nil {
					return err
				}
			}
			fmt.Fprintf(a.out, "%s is now %s / %s (%d activity log(s) added)\n",
				out.Lead.EnquiryNumber, out.Lead.LeadStatus, out.Lead.Quota, len(out.Activities))
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "new lead status")
	cmd.Flags().StringVar(&quota, "quota", "", "new quota")
	cmd.Flags().StringVarP(&comment, "comment", "m", "", "comment")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask before changing the status")
	return cmd
}

func newLeadsDeleteCmd(a *app) *cobra.Command {
	var (
		filters     leadFilters
		allMatching bool
		yes         bool
	)
	cmd := &cobra.Command{
		Use:   "delete [LEAD_ID...]",
		Short: "Delete leads by ID, or every lead matching the filters with --all-matching",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sel := selection.New(a.api)
			if allMatching {
				if _, err := sel.SelectAll(ctx, filters.query()); err != nil {
					return err
				}
			}
			sel.Select(args...)
			if sel.Count() == 0 {
				return selection.ErrNothingSelected
			}

			if !yes {
				ok, err := a.confirm(fmt.Sprintf("Delete %d lead(s) with their history?", sel.Count()))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(a.out, "Cancelled")
					return nil
				}
			}

			n, err := sel.BulkDelete(ctx, func(p int) { fmt.Fprintf(a.out, "\rDeleting... %3d%%", p) })
			fmt.Fprintln(a.out)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%d lead(s) deleted\n", n)
			return nil
		},
	}
	filters.register(cmd)
	cmd.Flags().BoolVar(&allMatching, "all-matching", false, "select every lead matching the filters, on all pages")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func newLeadsAssignCmd(a *app) *cobra.Command {
	var to string
	cmd := &cobra.Command{
		Use:   "assign --to COUNSELLOR LEAD_ID...",
		Short: "Assign leads to a counsellor (ID or username)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			counsellors, err := a.api.Counsellors(ctx)
			if err != nil {
				return err
			}
			var target *user.User
			for i, c := range counsellors {
				if c.ID == to || strings.EqualFold(c.Username, to) {
					target = &counsellors[i]
					break
				}
			}
			if target == nil {
				return errors.Errorf("no active counsellor %q", to)
			}

			n, err := a.api.AssignLeads(ctx, args, target.ID)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%d lead(s) assigned to %s\n", n, target.DisplayName())
			return nil
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "counsellor ID or username")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}
