package cli

import (
	"context"

	flag "github.com/spf13/pflag"
)

// CollectionsCmd returns the collections command.
func CollectionsCmd(a *app) *Command {
	fs := flag.NewFlagSet("collections", flag.ContinueOnError)
	fs.Bool("count", false, "Print the document count after each name")

	return &Command{
		Flags: fs,
		Usage: "collections [flags]",
		Short: "List collections",
		Long:  "List all collections, sorted by name.",
		Exec: func(_ context.Context, io *IO, _ []string) error {
			count, _ := fs.GetBool("count")

			return execCollections(io, a, count)
		},
	}
}

func execCollections(io *IO, a *app, count bool) error {
	db, err := a.open()
	if err != nil {
		return err
	}

	for _, name := range db.Names() {
		if !count {
			io.Println(name)

			continue
		}

		docs, err := db.All(name)
		if err != nil {
			return err
		}

		io.Printf("%s\t%d\n", name, len(docs))
	}

	return nil
}

// CreateCmd returns the create command.
func CreateCmd(a *app) *Command {
	return &Command{
		Flags:   flag.NewFlagSet("create", flag.ContinueOnError),
		Usage:   "create <collection>",
		Short:   "Create an empty collection",
		Long:    "Create an empty collection. Fails if the name is taken or invalid.",
		MinArgs: 1,
		Exec: func(_ context.Context, io *IO, args []string) error {
			db, err := a.open()
			if err != nil {
				return err
			}

			err = db.AddCollection(args[0])
			if err != nil {
				return err
			}

			io.Println(args[0])

			return nil
		},
	}
}
