package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jfmyers9/listenlog/internal/daemon"
)

// uninstallCmd represents the uninstall command
var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove the sync daemon launchd agent",
	Long: `Stop the sync daemon and remove its launchd agent.

Saved sync progress is kept, so a later install resumes where the
daemon stopped.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		plistPath, err := daemon.PlistPath()
		if err != nil {
			return err
		}

		if _, err := os.Stat(plistPath); errors.Is(err, os.ErrNotExist) {
			fmt.Println("Daemon is not installed (plist not found)")
			return nil
		}

		fmt.Println("Stopping daemon...")
		if err := bootout(); err != nil {
			fmt.Printf("Warning: %v\n", err)
			fmt.Println("Continuing with plist removal...")
		} else {
			fmt.Println("✓ Daemon stopped")
		}

		if err := os.Remove(plistPath); err != nil {
			return fmt.Errorf("failed to remove plist file: %w", err)
		}

		fmt.Printf("✓ Removed plist from %s\n", plistPath)
		fmt.Println("\nTo reinstall, run:")
		fmt.Println("  listenlog install")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(uninstallCmd)
}
