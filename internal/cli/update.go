package cli

import (
	"context"
	"errors"
	"strings"

	"github.com/calvinalkan/docstore/pkg/query"

	flag "github.com/spf13/pflag"
)

var errNoAssignments = errors.New("at least one --set is required")

// UpdateCmd returns the update command.
func UpdateCmd(a *app) *Command {
	fs := flag.NewFlagSet("update", flag.ContinueOnError)
	fs.StringP("where", "w", "", "Filter expression selecting documents to update ('true' for all)")
	fs.StringArrayP("set", "s", nil, "Assignment name[:type]=value (repeatable)")

	return &Command{
		Flags: fs,
		Usage: "update <collection> -w <expr> -s <field=value> [flags]",
		Short: "Update matching documents, prints their ids",
		Long: "Apply --set assignments to every document matching --where and persist\n" +
			"the result. Prints updated ids in storage order. Setting id is ignored.",
		MinArgs: 1,
		Exec: func(_ context.Context, io *IO, args []string) error {
			where, _ := fs.GetString("where")
			sets, _ := fs.GetStringArray("set")

			return execUpdate(io, a, args[0], where, sets)
		},
	}
}

func execUpdate(io *IO, a *app, name, where string, sets []string) error {
	if len(sets) == 0 {
		return errNoAssignments
	}

	assignments, err := query.ParseAssignments(sets)
	if err != nil {
		return err
	}

	if strings.TrimSpace(where) == "" {
		return errWhereEmpty
	}

	pred, err := query.Compile(where)
	if err != nil {
		return err
	}

	db, err := a.open()
	if err != nil {
		return err
	}

	ids, err := db.Update(name, pred, query.Modifier(assignments...))

	for _, id := range ids {
		io.Println(id)
	}

	return err
}
