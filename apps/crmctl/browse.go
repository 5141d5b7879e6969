package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/trezcool/admitflow/client"
	"github.com/trezcool/admitflow/client/listing"
	"github.com/trezcool/admitflow/core"
	"github.com/trezcool/admitflow/core/lead"
)

const browseHelp = `Commands:
  n | p            next | previous page
  g N              go to page N
  / TEXT           search name, phone or email (empty clears)
  # ENQ            enquiry number prefix (empty clears)
  f KEY=VALUE      column filter, e.g. f leadStatus=New (empty value clears)
  c                clear search & filters
  l N              page size (saved)
  r                retry the last failed fetch
  h                this help
  q                quit`

// lockedWriter serialises writes from the prompt loop and from debounced fetches.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (lw *lockedWriter) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.w.Write(p)
}

func newLeadsBrowseCmd(a *app) *cobra.Command {
	var filters leadFilters
	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Page through leads interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.browse(cmd.Context(), filters)
		},
	}
	filters.register(cmd)
	return cmd
}

func (a *app) browse(ctx context.Context, filters leadFilters) error {
	out := &lockedWriter{w: a.out}
	fetch := func(ctx context.Context, q map[string]string) ([]lead.Lead, core.PageMeta, error) {
		page, err := a.api.ListLeads(ctx, q)
		return page.Items, page.Meta, err
	}
	show := func(res listing.Result[lead.Lead]) {
		if res.Err != nil {
			fmt.Fprintf(out, "Error: %s (r to retry)\n", client.MessageOf(res.Err))
			return
		}
		buf := &strings.Builder{}
		printLeads(buf, res.Items, res.Meta)
		fmt.Fprint(out, buf.String())
	}

	ctl := listing.New[lead.Lead](ctx, fetch, a.conf.Client.SearchDebounce, a.prefs, show)
	defer ctl.Close()

	ctl.Replace(listing.State{
		Page:          1,
		Search:        filters.search,
		EnquiryNumber: filters.enquiry,
		Filters:       filters.columns(),
	})

	for {
		fmt.Fprint(out, "> ")
		line, err := a.in.ReadString('\n')
		if err != nil && line == "" {
			if err == io.EOF {
				return nil
			}
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		verb, arg := line, ""
		if line[0] == '/' || line[0] == '#' {
			verb, arg = line[:1], strings.TrimSpace(line[1:])
		} else if i := strings.IndexByte(line, ' '); i > 0 {
			verb, arg = line[:i], strings.TrimSpace(line[i+1:])
		}

		switch verb {
		case "q":
			return nil
		case "h", "?":
			fmt.Fprintln(out, browseHelp)
		case "n":
			ctl.NextPage()
		case "p":
			ctl.PrevPage()
		case "g":
			n, err := strconv.Atoi(arg)
			if err != nil {
				fmt.Fprintln(out, "usage: g N")
				continue
			}
			ctl.SetPage(n)
		case "/":
			ctl.SetSearch(arg)
		case "#":
			ctl.SetEnquiryNumber(strings.ToUpper(arg))
		case "f":
			key, value, ok := strings.Cut(arg, "=")
			if !ok || key == "" {
				fmt.Fprintln(out, "usage: f KEY=VALUE")
				continue
			}
			ctl.SetFilter(strings.TrimSpace(key), strings.TrimSpace(value))
		case "c":
			ctl.ClearFilters()
		case "l":
			n, err := strconv.Atoi(arg)
			if err != nil {
				fmt.Fprintln(out, "usage: l N")
				continue
			}
			if _, err = ctl.SetLimit(n); err != nil {
				fmt.Fprintln(out, "Error:", err)
			}
		case "r":
			ctl.Retry()
		default:
			fmt.Fprintf(out, "unknown command %q, h for help\n", verb)
		}
	}
}
