package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/trezcool/admitflow/core/comms"
)

// loadTemplates upserts the SMS templates listed in a YAML file, keyed by DLT template ID.
func (cli *commandLine) loadTemplates(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "reading templates file")
	}

	var nts []comms.NewTemplate
	if err = yaml.Unmarshal(data, &nts); err != nil {
		return errors.Wrap(err, "parsing templates file")
	}
	for i := range nts {
		if err = nts[i].Validate(cli.validate); err != nil {
			return errors.Wrapf(err, "template #%d", i+1)
		}
	}

	created, updated, err := cli.commsSvc.UpsertTemplates(context.Background(), nts)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%d template(s) created, %d updated\n", created, updated)
	return nil
}
