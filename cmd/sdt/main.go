// sdt reads and writes STAF marshalled data.
//
//	sdt format [flags] [file]   print the formatted report of marshalled data
//	sdt decode [flags] [file]   convert marshalled data to YAML or CBOR
//	sdt encode [flags] [file]   convert YAML, JSON or CBOR to marshalled data
//
// Input is read from file, or from stdin when file is absent or "-".
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/tidwall/jsonc"
	"golang.org/x/term"

	sdt "github.com/KimNorgaard/go-sdt"
	"github.com/KimNorgaard/go-sdt/internal/bridge"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// config holds the flags shared by all commands.
type config struct {
	ignoreIndirect bool
	maxDepth       int
	indent         int
	format         string
	output         string
	force          bool
	verbose        bool
}

type command struct {
	name    string
	summary string
	flags   func(*pflag.FlagSet, *config)
	run     func(cfg *config, data []byte, out io.Writer, logger zerolog.Logger) error
}

var commands = []command{
	{
		name:    "format",
		summary: "print the formatted report of marshalled data",
		flags: func(fs *pflag.FlagSet, cfg *config) {
			decodeFlags(fs, cfg)
			fs.IntVar(&cfg.indent, "indent", 2, "spaces per nesting level")
		},
		run: runFormat,
	},
	{
		name:    "decode",
		summary: "convert marshalled data to yaml or cbor",
		flags: func(fs *pflag.FlagSet, cfg *config) {
			decodeFlags(fs, cfg)
			fs.StringVar(&cfg.format, "to", "yaml", "output format: yaml or cbor")
			fs.BoolVar(&cfg.force, "force", false, "write cbor even when stdout is a terminal")
		},
		run: runDecode,
	},
	{
		name:    "encode",
		summary: "convert yaml, json or cbor to marshalled data",
		flags: func(fs *pflag.FlagSet, cfg *config) {
			fs.StringVar(&cfg.format, "from", "yaml", "input format: yaml, json (comments allowed) or cbor")
			fs.IntVar(&cfg.maxDepth, "max-depth", 1000, "maximum nesting depth")
		},
		run: runEncode,
	},
}

func decodeFlags(fs *pflag.FlagSet, cfg *config) {
	fs.BoolVar(&cfg.ignoreIndirect, "ignore-indirect", false, "keep scalars holding marshalled data as text")
	fs.IntVar(&cfg.maxDepth, "max-depth", 1000, "maximum nesting depth")
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printUsage(stderr)
		return nil
	}

	var cmd *command
	for i := range commands {
		if commands[i].name == args[0] {
			cmd = &commands[i]
		}
	}
	if cmd == nil {
		printUsage(stderr)
		return fmt.Errorf("unknown command %q", args[0])
	}

	var cfg config
	fs := pflag.NewFlagSet(cmd.name, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	cmd.flags(fs, &cfg)
	fs.StringVarP(&cfg.output, "output", "o", "", "write to this file instead of stdout")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "log why units fell back to literal text")
	if err := fs.Parse(args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if fs.NArg() > 1 {
		return fmt.Errorf("%s takes at most one input file, got %d", cmd.name, fs.NArg())
	}

	data, err := readInput(fs.Arg(0), stdin)
	if err != nil {
		return err
	}

	logger := newLogger(stderr, cfg.verbose)

	if cfg.output == "" {
		return cmd.run(&cfg, data, stdout, logger)
	}
	f, err := createOutput(cfg.output)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := cmd.run(&cfg, data, f, logger); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	return nil
}

// createOutput opens the file named by --output.
var createOutput = func(name string) (io.WriteCloser, error) {
	return os.Create(name)
}

func newLogger(w io.Writer, verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	output := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: !isTerminal(w)}
	return zerolog.New(output).Level(level).With().Timestamp().Logger()
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return data, nil
}

func (cfg *config) decodeOptions(logger zerolog.Logger) []sdt.Option {
	opts := []sdt.Option{sdt.MaxDepth(cfg.maxDepth), sdt.Logger(logger)}
	if cfg.ignoreIndirect {
		opts = append(opts, sdt.IgnoreIndirectObjects())
	}
	return opts
}

func runFormat(cfg *config, data []byte, out io.Writer, logger zerolog.Logger) error {
	c := sdt.Unmarshal(string(data), cfg.decodeOptions(logger)...)
	_, err := fmt.Fprintln(out, sdt.Format(c, sdt.Indent(cfg.indent)))
	return err
}

func runDecode(cfg *config, data []byte, out io.Writer, logger zerolog.Logger) error {
	c := sdt.Unmarshal(string(data), cfg.decodeOptions(logger)...)

	var (
		b   []byte
		err error
	)
	switch cfg.format {
	case "yaml", "json":
		b, err = bridge.ToYAML(c.Root())
	case "cbor":
		if isTerminal(out) && !cfg.force {
			return errors.New("refusing to write binary cbor to a terminal (use --output or --force)")
		}
		b, err = bridge.ToCBOR(c.Root())
	default:
		return fmt.Errorf("unknown output format %q", cfg.format)
	}
	if err != nil {
		return err
	}
	_, err = out.Write(b)
	return err
}

func runEncode(cfg *config, data []byte, out io.Writer, logger zerolog.Logger) error {
	var (
		v   sdt.Value
		err error
	)
	switch cfg.format {
	case "yaml":
		v, err = bridge.FromYAML(data)
	case "json":
		// JSON is read as YAML once comments and trailing commas are gone.
		v, err = bridge.FromYAML(jsonc.ToJSON(data))
	case "cbor":
		v, err = bridge.FromCBOR(data)
	default:
		return fmt.Errorf("unknown input format %q", cfg.format)
	}
	if err != nil {
		return err
	}

	s, err := sdt.Marshal(v, sdt.MaxDepth(cfg.maxDepth), sdt.Logger(logger))
	if err != nil {
		return err
	}
	_, err = io.WriteString(out, s)
	return err
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, "Usage:\n  sdt <command> [flags] [file]\n\nCommands:\n")
	for _, cmd := range commands {
		fmt.Fprintf(w, "  %-8s %s\n", cmd.name, cmd.summary)
	}
	fmt.Fprintf(w, "\nRun 'sdt <command> --help' for the flags of a command.\n")
}
