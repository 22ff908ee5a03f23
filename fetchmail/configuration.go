// SPDX-License-Identifier: GPL-3.0-or-later
package fetchmail

import (
	"fmt"
	"io"
	"os"
)

type ConfigFunc func(c *configuration) error

func DryRun() ConfigFunc {
	return func(c *configuration) error {
		c.DryRun = true

		return nil
	}
}

func Verbose() ConfigFunc {
	return func(c *configuration) error {
		c.Verbose = true

		return nil
	}
}

func Output(w io.Writer) ConfigFunc {
	return func(c *configuration) error {
		if w == nil {
			return fmt.Errorf("Output cannot be nil")
		}

		c.Output = w
		return nil
	}
}

type configuration struct {
	DryRun  bool
	Verbose bool

	Output io.Writer
}

func defaultConfiguration() *configuration {
	return &configuration{
		Output: os.Stdout,
	}
}
