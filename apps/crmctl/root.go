package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "crmctl",
		Short:         "Work leads, calls & SMS from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(a.out)
	root.PersistentFlags().StringVar(&a.prefsPath, "prefs", "", "preferences file (default <config dir>/admitflow/prefs.yaml)")
	root.PersistentFlags().StringVar(&a.baseURL, "url", "", "API base URL")

	root.AddCommand(
		newLoginCmd(a),
		newLogoutCmd(a),
		newLeadsCmd(a),
		newSMSCmd(a),
		newCallsCmd(a),
		newTemplatesCmd(a),
		newStatsCmd(a),
	)
	return root
}
