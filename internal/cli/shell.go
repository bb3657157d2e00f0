package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	flag "github.com/spf13/pflag"
)

const shellPrompt = "docstore> "

var errUnterminatedQuote = errors.New("unterminated quote")

// ShellCmd returns the shell command.
func ShellCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("shell", flag.ContinueOnError),
		Usage: "shell",
		Short: "Interactive prompt over the database",
		Long: "Start an interactive prompt accepting the other commands without the\n" +
			"\"docstore\" prefix. Arguments may be quoted. The database is opened once\n" +
			"for the whole session. Type 'help' for commands, 'exit' to leave.",
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			_, err := a.open()
			if err != nil {
				return err
			}

			return a.shell(ctx, o)
		},
	}
}

// lineReader is the part of liner.State the shell uses.
type lineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
}

// scanReader reads commands from non-interactive input.
type scanReader struct {
	sc *bufio.Scanner
}

func (r *scanReader) Prompt(string) (string, error) {
	if !r.sc.Scan() {
		err := r.sc.Err()
		if err == nil {
			err = io.EOF
		}

		return "", err
	}

	return r.sc.Text(), nil
}

func (*scanReader) AppendHistory(string) {}

func (a *app) shell(ctx context.Context, o *IO) error {
	var reader lineReader

	if a.in == os.Stdin {
		state := liner.NewLiner()
		defer a.closeLiner(state)

		state.SetCtrlCAborts(true)
		state.SetCompleter(a.complete)

		if f, err := os.Open(a.historyFile()); err == nil {
			_, _ = state.ReadHistory(f)
			_ = f.Close()
		}

		reader = state
	} else {
		if a.in == nil {
			return errNoStdin
		}

		reader = &scanReader{sc: bufio.NewScanner(a.in)}
	}

	for {
		line, err := reader.Prompt(shellPrompt)
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				return nil
			}

			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		reader.AppendHistory(line)

		args, err := splitArgs(line)
		if err != nil {
			o.ErrPrintln("error:", err)

			continue
		}

		if len(args) == 0 {
			continue
		}

		switch args[0] {
		case "exit", "quit", "q":
			return nil
		case "help", "?":
			a.printShellHelp(o)
		case "shell", "init":
			o.ErrPrintln("error: not available in the shell:", args[0])
		default:
			cmd := a.lookup(args[0])
			if cmd == nil {
				o.ErrPrintln("error: unknown command:", args[0], "(type 'help' for commands)")

				continue
			}

			_ = cmd.Run(ctx, o, args[1:])
		}
	}
}

func (a *app) printShellHelp(o *IO) {
	o.Println("Commands:")

	for _, cmd := range a.commands() {
		switch cmd.Name() {
		case "shell", "init":
			continue
		}

		o.Println(cmd.HelpLine())
	}

	o.Println(fmt.Sprintf("  %-34s %s", "help", "Show this help"))
	o.Println(fmt.Sprintf("  %-34s %s", "exit / quit / q", "Leave the shell"))
}

// complete offers command names for the first word and collection names
// for the second.
func (a *app) complete(line string) []string {
	var candidates []string

	cmd, rest, hasCmd := strings.Cut(line, " ")

	if !hasCmd {
		for _, c := range a.commands() {
			candidates = append(candidates, c.Name())
		}

		candidates = append(candidates, "help", "exit")

		return filterPrefix(candidates, cmd, "")
	}

	if a.db == nil || strings.Contains(rest, " ") {
		return nil
	}

	return filterPrefix(a.db.Names(), rest, cmd+" ")
}

func filterPrefix(candidates []string, prefix, lead string) []string {
	var out []string

	for _, c := range candidates {
		if strings.HasPrefix(c, prefix) {
			out = append(out, lead+c)
		}
	}

	return out
}

func (a *app) historyFile() string {
	home := a.env["HOME"]
	if home == "" {
		return ""
	}

	return filepath.Join(home, ".docstore_history")
}

func (a *app) closeLiner(state *liner.State) {
	if path := a.historyFile(); path != "" {
		if f, err := os.Create(path); err == nil {
			_, _ = state.WriteHistory(f)
			_ = f.Close()
		}
	}

	err := state.Close()
	if err != nil {
		a.log.Debug("failed to restore terminal", "error", err)
	}
}

// splitArgs splits a shell line into words. Single quotes preserve
// everything literally; double quotes allow \" and \\ escapes; a backslash
// outside quotes escapes the next character.
func splitArgs(line string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		inWord  bool
		quote   rune
		escaped bool
	)

	for _, r := range line {
		switch {
		case escaped:
			cur.WriteRune(r)

			escaped = false
		case quote == '\'':
			if r == '\'' {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case quote == '"':
			switch r {
			case '"':
				quote = 0
			case '\\':
				escaped = true
			default:
				cur.WriteRune(r)
			}
		case r == '\\':
			escaped, inWord = true, true
		case r == '\'' || r == '"':
			quote, inWord = r, true
		case r == ' ' || r == '\t':
			if inWord {
				args = append(args, cur.String())
				cur.Reset()

				inWord = false
			}
		default:
			cur.WriteRune(r)

			inWord = true
		}
	}

	if quote != 0 || escaped {
		return nil, errUnterminatedQuote
	}

	if inWord {
		args = append(args, cur.String())
	}

	return args, nil
}
