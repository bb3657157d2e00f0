package cli

import (
	"context"

	"github.com/calvinalkan/docstore/pkg/docstore"

	flag "github.com/spf13/pflag"
)

// SeedCmd returns the seed command.
func SeedCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("seed", flag.ContinueOnError),
		Usage: "seed",
		Short: "Fill an empty database with demo collections",
		Long: "Create demo collections covering every value type and nesting shape.\n" +
			"Does nothing (and warns) if the database already has collections.",
		Exec: func(_ context.Context, io *IO, _ []string) error {
			db, err := a.open()
			if err != nil {
				return err
			}

			seeded, err := docstore.Seed(db)
			if err != nil {
				return err
			}

			if !seeded {
				io.Warn("database is not empty", "seed only runs against an empty database")

				return nil
			}

			for _, name := range db.Names() {
				io.Println(name)
			}

			return nil
		},
	}
}
