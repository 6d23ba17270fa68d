// cmd/mattebox/assoc.go
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/tamzrod/mattebox/internal/assoc"
	"github.com/tamzrod/mattebox/internal/filter"
)

// Offline store maintenance. The controller must not be running against
// the same image.
func assocCommand() *cli.Command {
	return &cli.Command{
		Name:  "assoc",
		Usage: "Inspect or edit the association store offline",
		Commands: []*cli.Command{
			{
				Name:      "set",
				Usage:     "Associate a tag UID with a filter name",
				ArgsUsage: "<uid-hex> <name>",
				Action:    assocSet,
			},
			{
				Name:      "get",
				Usage:     "Look up the name of a tag UID",
				ArgsUsage: "<uid-hex>",
				Action:    assocGet,
			},
			{
				Name:   "list",
				Usage:  "List every association",
				Action: assocList,
			},
			{
				Name:  "format",
				Usage: "Reset both tables to empty",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "yes", Usage: "Confirm erasing all associations"},
				},
				Action: assocFormat,
			},
		},
	}
}

func withStore(cmd *cli.Command, fn func(s *assoc.Store) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	mem, closeMem, err := openMemory(cfg.NVM)
	if err != nil {
		return err
	}
	defer closeMem()

	s, err := assoc.New(mem)
	if err != nil {
		return err
	}
	return fn(s)
}

func assocSet(_ context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 2 {
		return fmt.Errorf("usage: mattebox assoc set <uid-hex> <name>")
	}
	uid, err := filter.ParseTagID(cmd.Args().Get(0))
	if err != nil {
		return err
	}
	name, err := filter.ParseName(cmd.Args().Get(1))
	if err != nil {
		return err
	}

	return withStore(cmd, func(s *assoc.Store) error {
		idx, err := s.Associate(uid, name)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "%s -> %s (name %d)\n", uid, name, idx)
		return nil
	})
}

func assocGet(_ context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("usage: mattebox assoc get <uid-hex>")
	}
	uid, err := filter.ParseTagID(cmd.Args().Get(0))
	if err != nil {
		return err
	}

	return withStore(cmd, func(s *assoc.Store) error {
		name, ok, err := s.FindName(uid)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("uid %s not associated", uid)
		}
		fmt.Fprintln(os.Stdout, name)
		return nil
	})
}

func assocList(_ context.Context, cmd *cli.Command) error {
	return withStore(cmd, func(s *assoc.Store) error {
		list, err := s.Associations()
		if err != nil {
			return err
		}
		layout := s.Layout()
		names, _, err := s.Counts()
		if err != nil {
			return err
		}

		for _, a := range list {
			fmt.Fprintf(os.Stdout, "%s\t%d\t%s\n", a.UID, a.NameIndex, a.Name)
		}
		fmt.Fprintf(os.Stdout, "# %d/%d names, %d/%d uids\n",
			names, layout.NameCapacity, len(list), layout.UIDCapacity)
		return nil
	})
}

func assocFormat(_ context.Context, cmd *cli.Command) error {
	if !cmd.Bool("yes") {
		return fmt.Errorf("format erases every association; pass --yes to confirm")
	}
	return withStore(cmd, func(s *assoc.Store) error {
		if err := s.Format(); err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, "association store formatted")
		return nil
	})
}
