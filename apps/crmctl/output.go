package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/trezcool/admitflow/core"
	"github.com/trezcool/admitflow/core/lead"
	"github.com/trezcool/admitflow/core/timeline"
)

const dateLayout = "02 Jan 2006 15:04"

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(dateLayout)
}

func orDash(s string) string { return core.FirstNonEmpty(s, "-") }

func joinNonEmpty(sep string, vals ...string) string {
	parts := vals[:0:0]
	for _, v := range vals {
		if v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, sep)
}

func printLeads(w io.Writer, leads []lead.Lead, meta core.PageMeta) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ENQUIRY\tNAME\tPHONE\tSTATUS\tQUOTA\tDISTRICT\tCOUNSELLOR\tCREATED")
	for _, l := range leads {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			l.EnquiryNumber, l.Name, l.Phone, l.LeadStatus, l.Quota,
			orDash(l.District), orDash(l.AssignedToName), formatDate(l.CreatedAt))
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "Page %d of %d, %d lead(s)\n", meta.Page, max(meta.TotalPages, 1), meta.Total)
}

func printLead(w io.Writer, l lead.Lead) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	rows := [][2]string{
		{"Enquiry", l.EnquiryNumber},
		{"ID", l.ID},
		{"Name", l.Name},
		{"Phone", l.Phone},
		{"Alternate phone", orDash(l.AlternatePhone)},
		{"Email", orDash(l.Email)},
		{"Father", orDash(l.FatherName)},
		{"Location", orDash(joinNonEmpty(", ", l.Village, l.Mandal, l.District, l.State))},
		{"Course", orDash(l.CourseInterested)},
		{"Source", orDash(l.Source)},
		{"Status", l.LeadStatus},
		{"Quota", l.Quota},
		{"Counsellor", orDash(l.AssignedToName)},
		{"Assigned", formatDate(l.AssignedAt)},
		{"Created", formatDate(l.CreatedAt)},
	}
	for _, r := range rows {
		fmt.Fprintf(tw, "%s:\t%s\n", r[0], r[1])
	}
	_ = tw.Flush()
}

func printTimeline(w io.Writer, items []timeline.Item) {
	for _, it := range items {
		title := it.Title
		if it.Label != "" {
			title = it.Label + " - " + title
		}
		fmt.Fprintf(w, "%s  %s (%s)\n", formatDate(it.Date), title, orDash(it.ActorName))
		if it.Description != "" {
			fmt.Fprintf(w, "    %s\n", it.Description)
		}
		if it.Comment != "" {
			fmt.Fprintf(w, "    %q\n", it.Comment)
		}
	}
}

func formatLastContact(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return formatDate(*t)
}
