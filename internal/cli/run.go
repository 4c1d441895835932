package cli

import (
	"context"
	"fmt"

	"csvpulse/internal/exporter"
)

// Execute implements goflags.Commander.
func (c *RunCommand) Execute(args []string) error {
	crit, err := c.criteria()
	if err != nil {
		return err
	}
	format, err := exporter.ParseFormat(c.Format)
	if err != nil {
		return err
	}

	req, closer, err := c.open()
	if err != nil {
		return err
	}
	defer closer.Close()

	res, err := c.env.newService().Run(context.Background(), req, crit)
	if err != nil {
		return err
	}

	if c.Out != "" {
		opts := exporter.Options{Format: format, Gzip: c.Gzip}
		if err := exporter.WriteFile(c.Out, res.Narrowed, opts); err != nil {
			return fmt.Errorf("write %s: %w", c.Out, err)
		}
	}
	return c.env.writeJSON(res.View)
}
