package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/calvinalkan/docstore/internal/config"
)

const (
	consumedOne  = 1
	consumedTwo  = 2
	consumedNone = 0
	helpFlag     = "--help"
)

var (
	ErrUnknownFlag     = errors.New("unknown flag")
	ErrFlagRequiresArg = errors.New("flag requires an argument")
)

// Run is the main entry point. Returns exit code.
func Run(in io.Reader, out io.Writer, errOut io.Writer, args []string, env map[string]string) int {
	if len(args) > 0 {
		args = args[1:]
	}

	flags, err := parseGlobalFlags(args)
	if err != nil {
		fprintln(errOut, "error:", err)
		printUsage(errOut)

		return 1
	}

	if len(flags.remaining) == 0 || flags.remaining[0] == "-h" || flags.remaining[0] == helpFlag {
		printUsage(out)

		return 0
	}

	cfg, err := config.Load(config.LoadInput{
		WorkDirOverride: flags.workDir,
		ConfigPath:      flags.configPath,
		DBDirOverride:   flags.dbDir,
		Env:             env,
	})
	if err != nil {
		fprintln(errOut, "error:", err)
		printUsage(errOut)

		return 1
	}

	a := &app{
		cfg: &cfg,
		in:  in,
		env: env,
		log: slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: cfg.Level()})),
	}

	cmd := a.lookup(flags.remaining[0])
	if cmd == nil {
		fprintln(errOut, "error: unknown command:", flags.remaining[0])
		printUsage(errOut)

		return 1
	}

	return cmd.Run(context.Background(), NewIO(out, errOut), flags.remaining[1:])
}

type globalFlags struct {
	workDir    string
	configPath string
	dbDir      string
	remaining  []string
}

func parseGlobalFlags(args []string) (globalFlags, error) {
	var flags globalFlags

	idx := 0
	for idx < len(args) {
		consumed, err := parseFlag(args, idx, &flags)
		if err != nil {
			return globalFlags{}, err
		}

		if consumed == 0 {
			// Not a flag, this is the command
			flags.remaining = args[idx:]

			break
		}

		idx += consumed
	}

	return flags, nil
}

// parseFlag tries to parse a flag at args[idx]. Returns number of args consumed (0 if not a flag).
func parseFlag(args []string, idx int, flags *globalFlags) (int, error) {
	arg := args[idx]

	value := func() (string, error) {
		if idx+1 >= len(args) {
			return "", fmt.Errorf("%w: %s", ErrFlagRequiresArg, arg)
		}

		return args[idx+1], nil
	}

	switch {
	case arg == "-C" || arg == "--cwd":
		v, err := value()
		flags.workDir = v

		return consumedTwo, err
	case arg == "-c" || arg == "--config":
		v, err := value()
		flags.configPath = v

		return consumedTwo, err
	case arg == "--db-dir":
		v, err := value()
		if err == nil && v == "" {
			err = config.ErrDBDirEmpty
		}

		flags.dbDir = v

		return consumedTwo, err
	case arg == "-h" || arg == helpFlag:
		flags.remaining = []string{helpFlag}

		return len(args) - idx, nil
	}

	if after, ok := strings.CutPrefix(arg, "--cwd="); ok {
		flags.workDir = after

		return consumedOne, nil
	}

	if after, ok := strings.CutPrefix(arg, "--config="); ok {
		flags.configPath = after

		return consumedOne, nil
	}

	if after, ok := strings.CutPrefix(arg, "--db-dir="); ok {
		if after == "" {
			return consumedNone, config.ErrDBDirEmpty
		}

		flags.dbDir = after

		return consumedOne, nil
	}

	if after, ok := strings.CutPrefix(arg, "-C"); ok {
		flags.workDir = after

		return consumedOne, nil
	}

	if strings.HasPrefix(arg, "-") && arg != "-" {
		return consumedNone, fmt.Errorf("%w: %s", ErrUnknownFlag, arg)
	}

	return consumedNone, nil
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}

func printUsage(w io.Writer) {
	fprintln(w, `docstore - embedded document store

Usage: docstore [global flags] <command> [args]

Global flags:
  -C, --cwd <dir>        Run as if started in <dir>
  -c, --config <file>    Use specified config file
      --db-dir <dir>     Override the database directory
  -h, --help             Show help

Commands:`)

	for _, cmd := range (&app{}).commands() {
		fprintln(w, cmd.HelpLine())
	}

	fprintln(w, `
Run "docstore <command> --help" for command flags.`)
}
