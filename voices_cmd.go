package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sahilm/fuzzy"
	"github.com/spf13/cobra"

	"github.com/fablecast/fablecast/internal/voices"
)

var voicesCmd = &cobra.Command{
	Use:   "voices",
	Short: "Manage piper narration voices",
	Long: paragraph(
		fmt.Sprintf("\n%s the local piper voice models: list what is installed, search the catalog, and download new ones from the voice hub.", keyword("Manages")),
	),
	Example: paragraph("fablecast voices list\n" +
		"fablecast voices find amy\n" +
		"fablecast voices get en_GB-alba-medium"),
}

var voicesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the installed voices",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		catalog, err := voices.Scan(voicesDir())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(catalog) == 0 {
			fmt.Fprintf(out, "No voices in %s. Try %s.\n", keyword(voicesDir()), keyword("fablecast voices get en_US-amy-low"))
			return nil
		}
		def := voices.Default(catalog)
		for _, v := range catalog {
			marker := "  "
			if def != nil && v.Name == def.Name {
				marker = okStyle.Render("* ")
			}
			fmt.Fprintf(out, "%s%s  %s  %s\n", marker, v.Name,
				subtleStyle.Render(v.Locale), subtleStyle.Render(v.DisplaySize()))
		}
		return nil
	},
}

var voicesFindCmd = &cobra.Command{
	Use:   "find QUERY",
	Short: "Fuzzy-search the installed voices and the hub catalog",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		catalog, err := voices.Scan(voicesDir())
		if err != nil {
			return err
		}
		matches := voices.Find(catalog, args[0])
		for _, v := range matches {
			fmt.Fprintf(out, "  %s  %s  %s\n", v.Name, subtleStyle.Render(v.Locale), subtleStyle.Render("installed"))
		}
		installed := make(map[string]bool, len(matches))
		for _, v := range matches {
			installed[v.Name] = true
		}
		hubNames := make([]string, len(voices.Known))
		for i, r := range voices.Known {
			hubNames[i] = r.Name
		}
		found := len(matches)
		for _, m := range fuzzy.Find(args[0], hubNames) {
			r := voices.Known[m.Index]
			if installed[r.Name] {
				continue
			}
			found++
			fmt.Fprintf(out, "  %s  %s  %s\n", r.Name, subtleStyle.Render(r.DisplaySize()),
				subtleStyle.Render("fablecast voices get "+r.Name))
		}
		if found == 0 {
			fmt.Fprintf(out, "Nothing matches %q.\n", args[0])
		}
		return nil
	},
}

var voicesGetCmd = &cobra.Command{
	Use:   "get NAME",
	Short: "Download a voice from the hub",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		dir, err := ensureDir(voicesDir())
		if err != nil {
			return err
		}
		return downloadVoice(ctx, cmd.OutOrStdout(), dir, args[0])
	},
}

var voicesDirCmd = &cobra.Command{
	Use:   "dir",
	Short: "Print the voices directory",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), voicesDir())
	},
}

func init() {
	voicesCmd.AddCommand(voicesListCmd, voicesFindCmd, voicesGetCmd, voicesDirCmd)
}
