package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/thellimist/repoctx/internal/assist"
)

var (
	flagLang        string
	flagCurrentFile string
	flagJSON        bool
)

var contextCmd = &cobra.Command{
	Use:   "context <query>",
	Short: "Print the most relevant repository files for a query",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		s, err := connect(cmd, false)
		if err != nil {
			return err
		}
		defer s.Close()

		result := s.aggregator.CollectRelevantCode(ctx, joinArgs(args), flagLang)
		fmt.Fprint(cmd.OutOrStdout(), result.Text)
		if result.Text != "" {
			fmt.Fprintln(cmd.OutOrStdout())
		}
		for _, f := range result.Failures {
			fmt.Fprintf(cmd.ErrOrStderr(), "Skipped %s: %s\n", f.Resource.Name, f.Err)
		}
		return nil
	},
}

var structureCmd = &cobra.Command{
	Use:   "structure",
	Short: "Print an overview of the repository resources",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		s, err := connect(cmd, false)
		if err != nil {
			return err
		}
		defer s.Close()

		fmt.Fprintln(cmd.OutOrStdout(), s.aggregator.FileStructure(ctx))
		return nil
	},
}

var askCmd = &cobra.Command{
	Use:   "ask <prompt>",
	Short: "Assemble the assistant messages for a prompt",
	Long: `Assemble the messages an assistant would receive for a prompt: a system
message with relevant repository code (and the repository structure when the
prompt mentions "structure" or "overview"), the current file if given, and
the prompt itself.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := assist.Request{Prompt: joinArgs(args), Language: flagLang}
		if flagCurrentFile != "" {
			data, err := os.ReadFile(flagCurrentFile)
			if err != nil {
				return fmt.Errorf("read current file: %w", err)
			}
			req.CurrentFile = string(data)
			req.CurrentFileName = filepath.Base(flagCurrentFile)
		}

		ctx, cancel := commandContext(cmd)
		defer cancel()

		s, err := connect(cmd, false)
		if err != nil {
			return err
		}
		defer s.Close()

		h := assist.NewHandler(s.aggregator, s.logger.Named("assist"))
		if !flagQuiet {
			h.Progress = func(msg string) { fmt.Fprintln(cmd.ErrOrStderr(), msg) }
		}
		resp := h.Handle(ctx, req)

		if flagJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		}
		if resp.Error != "" {
			return fmt.Errorf("%s", resp.Error)
		}
		for _, m := range resp.Messages {
			fmt.Fprintf(cmd.OutOrStdout(), "[%s]\n%s\n\n", m.Role, m.Content)
		}
		return nil
	},
}

func init() {
	contextCmd.Flags().StringVar(&flagLang, "lang", "", "language or file type hint for the search")
	askCmd.Flags().StringVar(&flagLang, "lang", "", "language of the current file")
	askCmd.Flags().StringVar(&flagCurrentFile, "current-file", "", "local file to include verbatim as context")
	askCmd.Flags().BoolVar(&flagJSON, "json", false, "print the response as JSON")
}
