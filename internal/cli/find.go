package cli

import (
	"context"

	"github.com/calvinalkan/docstore/pkg/document"
	"github.com/calvinalkan/docstore/pkg/query"

	flag "github.com/spf13/pflag"
)

// FindCmd returns the find command.
func FindCmd(a *app) *Command {
	fs := flag.NewFlagSet("find", flag.ContinueOnError)
	fs.StringP("where", "w", "", `Filter expression, e.g. 'age >= 18 && name startsWith "a"'`)
	fs.Bool("ids", false, "Print only document ids")
	fs.Bool("dump", false, "Print the debug listing instead of the storage format")
	fs.Int("limit", 0, "Maximum documents to print (0 = all)")

	return &Command{
		Flags: fs,
		Usage: "find <collection> [flags]",
		Short: "Print matching documents",
		Long: "Print documents matching --where in storage order. Without --where every\n" +
			"document matches. Field names are variables; nested documents are maps.",
		MinArgs: 1,
		Exec: func(_ context.Context, io *IO, args []string) error {
			where, _ := fs.GetString("where")
			idsOnly, _ := fs.GetBool("ids")
			dump, _ := fs.GetBool("dump")
			limit, _ := fs.GetInt("limit")

			return execFind(io, a, args[0], where, findOutput{idsOnly: idsOnly, dump: dump, limit: limit})
		},
	}
}

type findOutput struct {
	idsOnly bool
	dump    bool
	limit   int
}

func execFind(io *IO, a *app, name, where string, out findOutput) error {
	pred, err := query.Compile(where)
	if err != nil {
		return err
	}

	db, err := a.open()
	if err != nil {
		return err
	}

	docs, err := db.Find(name, pred)
	if err != nil {
		return err
	}

	if out.limit > 0 && len(docs) > out.limit {
		docs = docs[:out.limit]
	}

	if out.idsOnly {
		for _, doc := range docs {
			id, _ := doc.ID()
			io.Println(id)
		}

		return nil
	}

	return printDocs(io, docs, out.dump)
}

// GetCmd returns the get command.
func GetCmd(a *app) *Command {
	fs := flag.NewFlagSet("get", flag.ContinueOnError)
	fs.Bool("dump", false, "Print the debug listing instead of the storage format")

	return &Command{
		Flags:   fs,
		Usage:   "get <collection> <id>",
		Short:   "Print one document",
		MinArgs: 2,
		Exec: func(_ context.Context, io *IO, args []string) error {
			dump, _ := fs.GetBool("dump")

			id, err := parseID(args[1])
			if err != nil {
				return err
			}

			db, err := a.open()
			if err != nil {
				return err
			}

			doc, err := db.GetByID(args[0], id)
			if err != nil {
				return err
			}

			return printDocs(io, []*document.Document{doc}, dump)
		},
	}
}
