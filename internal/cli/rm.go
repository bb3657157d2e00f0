package cli

import (
	"context"
	"errors"
	"strings"

	"github.com/calvinalkan/docstore/pkg/query"

	flag "github.com/spf13/pflag"
)

var (
	errRmTarget   = errors.New("specify exactly one of <id> or --where")
	errWhereEmpty = errors.New("--where cannot be empty, use 'true' to match every document")
)

// RmCmd returns the rm command.
func RmCmd(a *app) *Command {
	fs := flag.NewFlagSet("rm", flag.ContinueOnError)
	fs.StringP("where", "w", "", "Remove every document matching the expression ('true' for all)")

	return &Command{
		Flags: fs,
		Usage: "rm <collection> [<id> | -w <expr>]",
		Short: "Remove documents, prints their ids",
		Long: "Remove one document by id, or every document matching --where, and\n" +
			"delete their files. Prints removed ids.",
		MinArgs: 1,
		Exec: func(_ context.Context, io *IO, args []string) error {
			where, _ := fs.GetString("where")

			return execRm(io, a, args, where, fs.Changed("where"))
		},
	}
}

func execRm(io *IO, a *app, args []string, where string, hasWhere bool) error {
	name := args[0]

	if hasWhere == (len(args) == 2) || len(args) > 2 {
		return errRmTarget
	}

	if hasWhere && strings.TrimSpace(where) == "" {
		return errWhereEmpty
	}

	db, err := a.open()
	if err != nil {
		return err
	}

	if hasWhere {
		pred, err := query.Compile(where)
		if err != nil {
			return err
		}

		ids, err := db.Remove(name, pred)
		for _, id := range ids {
			io.Println(id)
		}

		return err
	}

	id, err := parseID(args[1])
	if err != nil {
		return err
	}

	doc, err := db.GetByID(name, id)
	if err != nil {
		return err
	}

	_, err = db.RemoveDocument(name, doc)
	if err != nil {
		return err
	}

	io.Println(id)

	return nil
}
