package cli

import "context"

// Execute implements goflags.Commander.
func (c *InspectCommand) Execute(args []string) error {
	req, closer, err := c.open()
	if err != nil {
		return err
	}
	defer closer.Close()

	desc, err := c.env.newService().Describe(context.Background(), req)
	if err != nil {
		return err
	}
	return c.env.writeJSON(desc)
}
