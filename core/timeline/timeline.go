// Package timeline folds a lead, its activity logs and its communication records
// into a single feed, newest first.
package timeline

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/trezcool/admitflow/core"
	"github.com/trezcool/admitflow/core/comms"
	"github.com/trezcool/admitflow/core/lead"
)

// Item kinds
const (
	KindEnquiryCreated = "enquiry_created"
	KindAssignment     = "assignment"
	KindCall           = "call"
	KindSMS            = "sms"
	KindFieldUpdate    = "field_update"
	KindStatusChange   = "status_change"
	KindQuotaChange    = "quota_change"
	KindComment        = "comment"
)

const (
	unknownActor  = "Unknown"
	unknownValue  = "N/A"
	unknownNumber = "Unknown number"
	systemActor   = "System"
)

type Item struct {
	ID            string              `json:"id"`
	Kind          string              `json:"kind"`
	Title         string              `json:"title"`
	Description   string              `json:"description"`
	Date          time.Time           `json:"date"`
	ActorName     string              `json:"actorName"`
	Sequence      int                 `json:"sequence,omitempty"`
	Label         string              `json:"label,omitempty"` // "1st Call"
	ContactNumber string              `json:"contactNumber,omitempty"`
	Status        core.DeliveryStatus `json:"status,omitempty"`
	Comment       string              `json:"comment,omitempty"`
}

// Build merges everything known about a lead into one feed sorted by date, newest first.
// Items sharing a timestamp keep the order enquiry, assignment, call, sms, field update,
// status change, quota change, comment.
func Build(l lead.Lead, logs []lead.ActivityLog, recs []comms.CommunicationRecord) []Item {
	var (
		assignments []Item
		fieldUpds   []Item
		statuses    []Item
		quotas      []Item
		comments    []Item
	)
	for _, log := range logs {
		switch {
		case log.Type == lead.ActivityStatusChange && log.IsAssignment():
			assignments = append(assignments, assignmentFromLog(log))
		case log.Type == lead.ActivityStatusChange:
			statuses = append(statuses, statusItem(log))
		case log.Type == lead.ActivityQuotaChange:
			quotas = append(quotas, quotaItem(log))
		case log.Type == lead.ActivityFieldUpdate:
			fieldUpds = append(fieldUpds, fieldUpdateItem(log))
		case log.Type == lead.ActivityComment:
			comments = append(comments, commentItem(log))
		}
	}
	// the lead's own assignment fields only count when no assignment log exists
	if len(assignments) == 0 && l.AssignedTo != "" && !l.AssignedAt.IsZero() {
		assignments = append(assignments, assignmentFromLead(l))
	}

	calls, sms := sequenceComms(recs)

	items := make([]Item, 0, 1+len(logs)+len(recs)+1)
	items = append(items, enquiryItem(l))
	items = append(items, assignments...)
	items = append(items, calls...)
	items = append(items, sms...)
	items = append(items, fieldUpds...)
	items = append(items, statuses...)
	items = append(items, quotas...)
	items = append(items, comments...)

	sort.SliceStable(items, func(i, j int) bool { return items[i].Date.After(items[j].Date) })
	return items
}

// sequenceComms numbers calls & SMS together per contact number, oldest first, so a number
// called once then texted shows "1st Call" and "2nd SMS".
func sequenceComms(recs []comms.CommunicationRecord) (calls, sms []Item) {
	groups := make(map[string][]comms.CommunicationRecord)
	var order []string

	for _, rec := range recs {
		if !rec.IsCall() && !rec.IsSMS() {
			continue
		}
		number := core.CleanPhone(rec.ContactNumber)
		if _, ok := groups[number]; !ok {
			order = append(order, number)
		}
		groups[number] = append(groups[number], rec)
	}

	for _, number := range order {
		group := groups[number]
		sort.SliceStable(group, func(i, j int) bool { return group[i].SentAt.Before(group[j].SentAt) })
		for i, rec := range group {
			item := commItem(rec, i+1)
			if rec.IsCall() {
				calls = append(calls, item)
			} else {
				sms = append(sms, item)
			}
		}
	}
	return calls, sms
}

func commItem(rec comms.CommunicationRecord, seq int) Item {
	noun, kind := "Call", KindCall
	if rec.IsSMS() {
		noun, kind = "SMS", KindSMS
	}
	label := Ordinal(seq) + " " + noun
	item := Item{
		ID:            rec.ID,
		Kind:          kind,
		Title:         fmt.Sprintf("%s to %s", label, FormatContact(rec.ContactNumber)),
		Date:          rec.SentAt,
		ActorName:     orDefault(rec.ActorName, unknownActor),
		Sequence:      seq,
		Label:         label,
		ContactNumber: rec.ContactNumber,
		Status:        rec.Status,
		Comment:       rec.Remarks,
	}
	if rec.IsCall() {
		desc := orDefault(rec.CallOutcome, unknownValue)
		if rec.DurationSeconds > 0 {
			desc += fmt.Sprintf(" (%s)", FormatDuration(rec.DurationSeconds))
		}
		item.Description = desc
	} else {
		item.Description = orDefault(rec.TemplateName, "SMS")
		if rec.Content != "" {
			item.Description += ": " + rec.Content
		}
	}
	return item
}

func enquiryItem(l lead.Lead) Item {
	return Item{
		ID:          "enquiry-" + l.ID,
		Kind:        KindEnquiryCreated,
		Title:       "Enquiry Created",
		Description: fmt.Sprintf("Enquiry %s received from %s", orDefault(l.EnquiryNumber, unknownValue), orDefault(l.Source, "unknown source")),
		Date:        l.CreatedAt,
		ActorName:   systemActor,
	}
}

func assignmentFromLog(log lead.ActivityLog) Item {
	name, _ := log.Metadata[lead.MetaAssignedToName].(string)
	return Item{
		ID:          log.ID,
		Kind:        KindAssignment,
		Title:       "Assigned to Counsellor",
		Description: fmt.Sprintf("Assigned to %s", orDefault(name, unknownActor)),
		Date:        log.CreatedAt,
		ActorName:   orDefault(log.ActorName, unknownActor),
	}
}

func assignmentFromLead(l lead.Lead) Item {
	return Item{
		ID:          "assignment-" + l.ID,
		Kind:        KindAssignment,
		Title:       "Assigned to Counsellor",
		Description: fmt.Sprintf("Assigned to %s", orDefault(l.AssignedToName, unknownActor)),
		Date:        l.AssignedAt,
		ActorName:   systemActor,
	}
}

func statusItem(log lead.ActivityLog) Item {
	return Item{
		ID:    log.ID,
		Kind:  KindStatusChange,
		Title: "Status Changed",
		Description: fmt.Sprintf("Status changed from %s to %s",
			orDefault(log.OldStatus, unknownValue), orDefault(log.NewStatus, unknownValue)),
		Date:      log.CreatedAt,
		ActorName: orDefault(log.ActorName, unknownActor),
		Comment:   log.Comment,
	}
}

func quotaItem(log lead.ActivityLog) Item {
	return Item{
		ID:    log.ID,
		Kind:  KindQuotaChange,
		Title: "Quota Changed",
		Description: fmt.Sprintf("Quota changed from %s to %s",
			orDefault(log.OldQuota, unknownValue), orDefault(log.NewQuota, unknownValue)),
		Date:      log.CreatedAt,
		ActorName: orDefault(log.ActorName, unknownActor),
		Comment:   log.Comment,
	}
}

func fieldUpdateItem(log lead.ActivityLog) Item {
	fields := metaStrings(log.Metadata[lead.MetaFields])
	desc := "Lead details updated"
	if len(fields) > 0 {
		desc = "Updated " + strings.Join(fields, ", ")
	}
	return Item{
		ID:          log.ID,
		Kind:        KindFieldUpdate,
		Title:       "Details Updated",
		Description: desc,
		Date:        log.CreatedAt,
		ActorName:   orDefault(log.ActorName, unknownActor),
	}
}

func commentItem(log lead.ActivityLog) Item {
	return Item{
		ID:          log.ID,
		Kind:        KindComment,
		Title:       "Comment Added",
		Description: orDefault(log.Comment, ""),
		Date:        log.CreatedAt,
		ActorName:   orDefault(log.ActorName, unknownActor),
		Comment:     log.Comment,
	}
}

// metaStrings reads a string list stored in metadata, before or after a JSON round trip.
func metaStrings(v interface{}) []string {
	switch vals := v.(type) {
	case []string:
		return vals
	case []interface{}:
		out := make([]string, 0, len(vals))
		for _, val := range vals {
			if s, ok := val.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

// Ordinal returns 1st, 2nd, 3rd, 4th, ..., 11th, 12th, 13th, ..., 21st, ...
func Ordinal(n int) string {
	suffix := "th"
	switch n % 100 {
	case 11, 12, 13:
	default:
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return fmt.Sprintf("%d%s", n, suffix)
}

// FormatContact prefixes 10 digit numbers with the Indian country code.
func FormatContact(number string) string {
	cleaned := core.CleanPhone(number)
	switch {
	case cleaned == "":
		return unknownNumber
	case len(cleaned) == 10:
		return "+91" + cleaned
	default:
		return number
	}
}

// FormatDuration formats seconds as 1m 05s.
func FormatDuration(secs int) string {
	if secs < 60 {
		return fmt.Sprintf("%ds", secs)
	}
	return fmt.Sprintf("%dm %02ds", secs/60, secs%60)
}
