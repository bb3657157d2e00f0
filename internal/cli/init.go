package cli

import (
	"context"

	"github.com/calvinalkan/docstore/internal/config"

	flag "github.com/spf13/pflag"
)

// InitCmd returns the init command.
func InitCmd(a *app) *Command {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	fs.Bool("force", false, "Overwrite an existing config file")

	return &Command{
		Flags: fs,
		Usage: "init [flags]",
		Short: "Write config and create the database directory",
		Long: "Write the resolved configuration to " + config.FileName + " in the working directory\n" +
			"and create the database directory. Prints the config file path.",
		Exec: func(_ context.Context, io *IO, _ []string) error {
			force, _ := fs.GetBool("force")

			return execInit(io, a, force)
		},
	}
}

func execInit(io *IO, a *app, force bool) error {
	path, err := config.WriteProject(a.cfg.EffectiveCwd, *a.cfg, force)
	if err != nil {
		return err
	}

	_, err = a.open()
	if err != nil {
		return err
	}

	io.Println(path)

	return nil
}
