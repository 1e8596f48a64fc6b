package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show session store statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := container(cmd.Context())
		if err != nil {
			return err
		}
		defer c.Close()

		st, err := c.Sessions.Stats(cmd.Context())
		if err != nil {
			return err
		}
		color.Cyan("Session store")
		fmt.Printf("  sessions:     %d\n", st.SessionsCount)
		fmt.Printf("  evaluations:  %d\n", st.EvaluationsCount)
		fmt.Printf("  size:         %.2f MB\n", st.TotalSizeMB)
		if st.StorageDir != "" {
			fmt.Printf("  directory:    %s\n", st.StorageDir)
		}
		return nil
	},
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Evict sessions older than --max-age",
	RunE: func(cmd *cobra.Command, _ []string) error {
		maxAge, err := cmd.Flags().GetDuration("max-age")
		if err != nil {
			return err
		}
		c, err := container(cmd.Context())
		if err != nil {
			return err
		}
		defer c.Close()

		if maxAge <= 0 {
			maxAge = c.Config.SessionMaxAge
		}
		n, err := c.Sessions.Cleanup(cmd.Context(), maxAge)
		if err != nil {
			return err
		}
		color.Green("Removed %d session(s) older than %s", n, maxAge)
		return nil
	},
}

func init() {
	cleanupCmd.Flags().Duration("max-age", 0, "maximum session age (default: SESSION_MAX_AGE)")
	rootCmd.AddCommand(statsCmd, cleanupCmd)
}
