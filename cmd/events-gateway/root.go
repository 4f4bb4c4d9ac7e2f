package main

import (
	"github.com/Sternrassler/event-aggregator/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newRootCmd() *cobra.Command {
	v := config.NewViper()

	root := &cobra.Command{
		Use:   "events-gateway",
		Short: "Aggregate paginated event listings from several upstream APIs",
		Long: `events-gateway merges the event listings of several upstream providers
into one paginated, time-ordered listing. Settings come from EVENTS_*
environment variables, flags override them.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().String("log-level", "", "log level (debug|info|warn|error)")
	root.PersistentFlags().Bool("log-pretty", false, "human-readable console logs")
	bindFlag(v, root, "log_level", "log-level")
	bindFlag(v, root, "log_pretty", "log-pretty")

	root.AddCommand(newServeCmd(v), newPlanCmd())
	return root
}

// bindFlag binds a persistent or local flag of cmd to key, so the flag
// wins over the environment only when set.
func bindFlag(v *viper.Viper, cmd *cobra.Command, key, flag string) {
	f := cmd.Flags().Lookup(flag)
	if f == nil {
		f = cmd.PersistentFlags().Lookup(flag)
	}
	_ = v.BindPFlag(key, f)
}
