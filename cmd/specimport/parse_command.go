package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"specimport/internal/config"
	"specimport/internal/deps"
	"specimport/internal/logging"
	"specimport/internal/session"
	"specimport/internal/source"
)

func newParseCommand(configFlag *string) *cobra.Command {
	var (
		archiveFlag  bool
		entryFlag    string
		validateFlag bool
		outputFlag   string
	)

	cmd := &cobra.Command{
		Use:   "parse <source>",
		Short: "Parse an API specification into the normalized model",
		Long: `Parse stages the given source (a spec file, a directory, a zip archive,
or - for stdin), resolves its entry-point file, and runs the isolated parse.
When several files are plausible entry points, the candidates are listed and
a choice is read from the terminal.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, _, _, err := config.Load(*configFlag)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if validateFlag {
				cfg.Parser.ValidateSpecs = true
			}

			logger, err := logging.New(logging.Options{
				Level:  cfg.Logging.Level,
				Format: cfg.Logging.Format,
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			if err := deps.Verify(deps.Requirements(cfg.Parser.WorkerBinary)); err != nil {
				return err
			}

			src, err := readSource(args[0])
			if err != nil {
				return err
			}

			orch := session.New(cfg, logger)
			defer orch.Cleanup()

			return runSession(ctx, cmd, orch, src, source.Options{
				Archive:   archiveFlag,
				EntryFile: entryFlag,
			}, cfg.Parser.ValidateSpecs, outputFlag)
		},
	}

	cmd.Flags().BoolVar(&archiveFlag, "archive", false, "Treat the source as a zip archive")
	cmd.Flags().StringVar(&entryFlag, "entry", "", "Entry file name relative to the source root")
	cmd.Flags().BoolVar(&validateFlag, "validate", false, "Request validation notes from the parser")
	cmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Write the model to a file instead of stdout")
	return cmd
}

func readSource(arg string) (source.Source, error) {
	if arg == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return source.Source{}, fmt.Errorf("read stdin: %w", err)
		}
		return source.FromBytes(data), nil
	}
	return source.FromPath(arg), nil
}

func runSession(ctx context.Context, cmd *cobra.Command, orch *session.Orchestrator, src source.Source, opts source.Options, validate bool, outputPath string) error {
	if err := orch.Prepare(ctx, src, opts); err != nil {
		return err
	}

	res, err := orch.Resolve(ctx, "")
	if err != nil {
		return err
	}

	mainFile := ""
	if res.Ambiguous() {
		choice, err := chooseCandidate(cmd, res.Candidates)
		if err != nil {
			return err
		}
		if choice == "" {
			if cancelErr := orch.Cancel(); cancelErr != nil {
				return cancelErr
			}
			return fmt.Errorf("import cancelled: no entry file chosen")
		}
		mainFile = choice
	}

	result, err := orch.Parse(ctx, mainFile, validate)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Detected %s (%s)\n", result.Type.Family, result.Type.ContentType)
	if outputPath != "" {
		if err := os.WriteFile(outputPath, []byte(result.Model), 0o644); err != nil {
			return fmt.Errorf("write model: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Model written to %s\n", outputPath)
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), result.Model)
	return nil
}

// chooseCandidate lists the plausible entry files and reads the user's
// pick. An empty answer cancels the import. Without a terminal there is
// nobody to ask, so the ambiguity is reported as the outcome.
func chooseCandidate(cmd *cobra.Command, candidates []string) (string, error) {
	out := cmd.ErrOrStderr()

	if isatty.IsTerminal(os.Stdout.Fd()) {
		rows := make([][]string, 0, len(candidates))
		for i, candidate := range candidates {
			rows = append(rows, []string{strconv.Itoa(i + 1), candidate})
		}
		fmt.Fprintln(out, renderTable([]string{"#", "Candidate entry file"}, rows, []columnAlignment{alignRight, alignLeft}))
	} else {
		fmt.Fprintln(out, "Multiple plausible entry files:")
		for i, candidate := range candidates {
			fmt.Fprintf(out, "  %d. %s\n", i+1, candidate)
		}
	}

	if !isatty.IsTerminal(os.Stdin.Fd()) {
		return "", fmt.Errorf("entry point is ambiguous; rerun with --entry <file>")
	}

	fmt.Fprint(out, "Entry file number (empty to cancel): ")
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil && answer == "" {
		return "", nil
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", nil
	}
	index, err := strconv.Atoi(answer)
	if err != nil || index < 1 || index > len(candidates) {
		return "", fmt.Errorf("invalid choice %q", answer)
	}
	return candidates[index-1], nil
}
