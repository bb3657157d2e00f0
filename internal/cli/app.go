package cli

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/calvinalkan/docstore/internal/config"
	"github.com/calvinalkan/docstore/pkg/codec"
	"github.com/calvinalkan/docstore/pkg/docstore"
	"github.com/calvinalkan/docstore/pkg/document"
)

// app is the state shared by all commands of one invocation. The shell
// keeps a single app so the database is opened once.
type app struct {
	cfg *config.Config
	in  io.Reader
	env map[string]string
	log *slog.Logger
	db  *docstore.DB
}

// commands returns fresh command instances. Each call builds new flag
// sets, so the shell can run the same command repeatedly.
func (a *app) commands() []*Command {
	return []*Command{
		InitCmd(a),
		CollectionsCmd(a),
		CreateCmd(a),
		InsertCmd(a),
		FindCmd(a),
		GetCmd(a),
		UpdateCmd(a),
		RmCmd(a),
		SeedCmd(a),
		ShellCmd(a),
		PrintConfigCmd(a),
	}
}

func (a *app) lookup(name string) *Command {
	for _, cmd := range a.commands() {
		if cmd.Name() == name {
			return cmd
		}
	}

	return nil
}

// open returns the database, opening it on first use.
func (a *app) open() (*docstore.DB, error) {
	if a.db != nil {
		return a.db, nil
	}

	opts := []docstore.Option{
		docstore.WithLogger(a.log),
		docstore.WithExtension(a.cfg.FileExt),
	}

	if a.cfg.Seed != nil {
		opts = append(opts, docstore.WithSeed(*a.cfg.Seed))
	}

	db, err := docstore.Open(a.cfg.DBDirAbs, opts...)
	if err != nil {
		return nil, err
	}

	a.db = db

	return db, nil
}

func parseID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid document id %q: must be an unsigned integer", s)
	}

	return id, nil
}

// printDocs writes docs in the persistence format, separated by blank
// lines. With dump set the debug listing is used instead.
func printDocs(o *IO, docs []*document.Document, dump bool) error {
	for i, doc := range docs {
		if i > 0 {
			o.Println()
		}

		if dump {
			o.Printf("%s", doc.Dump())

			continue
		}

		data, err := codec.Marshal(doc)
		if err != nil {
			return err
		}

		o.Printf("%s", data)
	}

	return nil
}
