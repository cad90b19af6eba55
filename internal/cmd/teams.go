package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tandem-dev/tandem/internal/config"
	"github.com/tandem-dev/tandem/internal/logging"
	"github.com/tandem-dev/tandem/internal/team"
)

var teamsCmd = &cobra.Command{
	Use:   "teams",
	Short: "List available teams",
	Long: `Teams lists every team Tandem can run: the built-in default plus any
YAML manifests found in the teams directory (teams.dir, default
$HOME/.config/tandem/teams).`,
	RunE: runTeams,
}

var teamsWatch bool

func init() {
	rootCmd.AddCommand(teamsCmd)
	teamsCmd.Flags().BoolVarP(&teamsWatch, "watch", "w", false, "Reload and reprint when manifests change")
}

func runTeams(cmd *cobra.Command, args []string) error {
	cfg := config.Get()

	logger, err := logging.NewLogger("", cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer logger.Close()

	registry := team.NewRegistry(cfg.TeamsDir(), logger)
	teams, err := registry.LoadAll()
	if err != nil {
		return err
	}
	printTeams(registry, teams)

	if !teamsWatch {
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	fmt.Printf("\nWatching %s for changes (ctrl-c to stop)\n", cfg.TeamsDir())
	err = registry.Watch(ctx, func() {
		fmt.Println()
		current, loadErr := registry.LoadAll()
		if loadErr != nil {
			fmt.Fprintf(os.Stderr, "reload failed: %v\n", loadErr)
			return
		}
		printTeams(registry, current)
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func printTeams(registry *team.Registry, teams map[string]*team.Team) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tDESCRIPTION\tSOURCE")
	for _, name := range registry.Names() {
		tm := teams[name]
		fmt.Fprintf(w, "%s\t%s\t%s\n", tm.Name, tm.Description, tm.Source)
	}
	w.Flush()
}
