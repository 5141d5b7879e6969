package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/trezcool/admitflow/core/comms"
)

func newSMSCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:               "sms",
		Short:             "Send DLT template SMS",
		PersistentPreRunE: a.requireLogin,
	}

	var (
		templateID string
		vars, to   []string
	)
	send := &cobra.Command{
		Use:   "send LEAD_ID --template ID [--var VALUE]... [--to NUMBER]...",
		Short: "Send a template to a lead (its phone unless --to is given)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			recs, err := a.api.SendSMS(cmd.Context(), args[0], comms.SendSMS{
				TemplateID:     templateID,
				Variables:      vars,
				ContactNumbers: to,
			})
			if err != nil {
				return err
			}
			for _, r := range recs {
				fmt.Fprintf(a.out, "%s: %s\n", r.ContactNumber, r.Status)
			}
			return nil
		},
	}
	send.Flags().StringVarP(&templateID, "template", "t", "", "template ID")
	send.Flags().StringArrayVar(&vars, "var", nil, "template variable, in order (repeatable)")
	send.Flags().StringSliceVar(&to, "to", nil, "contact number (repeatable)")
	_ = send.MarkFlagRequired("template")

	cmd.AddCommand(send)
	return cmd
}

func newCallsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:               "calls",
		Short:             "Log calls",
		PersistentPreRunE: a.requireLogin,
	}

	var nc comms.NewCall
	logCmd := &cobra.Command{
		Use:   "log LEAD_ID --number NUMBER --outcome OUTCOME",
		Short: "Log a call made to a lead",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := a.api.LogCall(cmd.Context(), args[0], nc)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Call to %s logged: %s\n", rec.ContactNumber, rec.CallOutcome)
			return nil
		},
	}
	logCmd.Flags().StringVarP(&nc.ContactNumber, "number", "n", "", "number called")
	logCmd.Flags().StringVarP(&nc.CallOutcome, "outcome", "o", "", fmt.Sprintf("one of %q", comms.AllOutcomes))
	logCmd.Flags().IntVarP(&nc.DurationSeconds, "duration", "d", 0, "duration in seconds")
	logCmd.Flags().StringVarP(&nc.Remarks, "remarks", "m", "", "remarks")
	_ = logCmd.MarkFlagRequired("number")
	_ = logCmd.MarkFlagRequired("outcome")

	cmd.AddCommand(logCmd)
	return cmd
}

func newTemplatesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:               "templates",
		Short:             "SMS templates",
		PersistentPreRunE: a.requireLogin,
	}

	var all bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List SMS templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tmpls, err := a.api.Templates(cmd.Context(), !all)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tDLT ID\tVARS\tACTIVE")
			for _, t := range tmpls {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%t\n", t.ID, t.Name, t.DLTTemplateID, t.VariableCount, t.IsActive)
			}
			return tw.Flush()
		},
	}
	list.Flags().BoolVar(&all, "all", false, "include inactive templates")

	cmd.AddCommand(list)
	return cmd
}
