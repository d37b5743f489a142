package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thellimist/repoctx/internal/mcp"
)

var flagFileType string

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Perform the MCP handshake and report the server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := connect(cmd, true)
		if err != nil {
			return err
		}
		defer s.Close()

		info := s.server
		fmt.Fprintf(cmd.OutOrStdout(), "Connected to %s %s (protocol %s)\n",
			info.ServerInfo.Name, info.ServerInfo.Version, info.ProtocolVersion)
		return nil
	},
}

var resourcesCmd = &cobra.Command{
	Use:   "resources",
	Short: "List every resource the server exposes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		s, err := connect(cmd, true)
		if err != nil {
			return err
		}
		defer s.Close()

		resources, err := s.client.ListResources(ctx)
		if err != nil {
			return err
		}
		printResources(cmd, resources)
		return nil
	},
}

var readCmd = &cobra.Command{
	Use:   "read <uri>",
	Short: "Print the content of a resource by URI",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		s, err := connect(cmd, true)
		if err != nil {
			return err
		}
		defer s.Close()

		text, err := s.client.ReadResource(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), text)
		return nil
	},
}

var fileCmd = &cobra.Command{
	Use:   "file <path>",
	Short: "Print a repository file by path",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		s, err := connect(cmd, true)
		if err != nil {
			return err
		}
		defer s.Close()

		content, err := s.client.GetFileContent(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), content)
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the repository and list ranked hits",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		s, err := connect(cmd, true)
		if err != nil {
			return err
		}
		defer s.Close()

		files, err := s.client.SearchCodeInRepo(ctx, joinArgs(args), flagFileType)
		if err != nil {
			return err
		}
		printResources(cmd, files)
		return nil
	},
}

func init() {
	searchCmd.Flags().StringVar(&flagFileType, "type", "", "restrict the search to a file type")
}

func printResources(cmd *cobra.Command, resources []mcp.Resource) {
	out := cmd.OutOrStdout()
	for _, r := range resources {
		desc := r.Description
		if len(desc) > 72 {
			desc = desc[:69] + "..."
		}
		if desc != "" {
			fmt.Fprintf(out, "%s\t%s\t%s\n", r.URI, r.Name, desc)
		} else {
			fmt.Fprintf(out, "%s\t%s\n", r.URI, r.Name)
		}
	}
}
