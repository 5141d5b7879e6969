// Command crmctl is the counsellor & manager command line for the admitflow API.
package main

import (
	"fmt"
	"os"

	"github.com/trezcool/admitflow/core"
)

func main() {
	a := newApp(core.NewConfig(), os.Stdin, os.Stdout)
	if err := newRootCmd(a).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", errorMessage(err))
		os.Exit(1)
	}
}
