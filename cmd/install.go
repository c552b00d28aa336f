package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jfmyers9/listenlog/internal/daemon"
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the sync daemon as a launchd agent",
	Long: `Install the listenlog sync daemon as a launchd agent that runs on login.

This command will:
  - Generate a launchd plist for the daemon
  - Install it to ~/Library/LaunchAgents/
  - Load the agent with launchctl, which starts the daemon

Configure forward.url and run 'listenlog auth lastfm' first; the agent
is restarted by launchd only when the daemon exits with an error.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		binaryPath, err := os.Executable()
		if err != nil {
			return fmt.Errorf("failed to get executable path: %w", err)
		}
		binaryPath, err = filepath.EvalSymlinks(binaryPath)
		if err != nil {
			return fmt.Errorf("failed to resolve executable path: %w", err)
		}

		logDir, err := daemon.DefaultLogDir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}

		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}

		plist, err := daemon.GeneratePlist(daemon.AgentConfig{
			BinaryPath:       binaryPath,
			LogDir:           logDir,
			WorkingDirectory: home,
		})
		if err != nil {
			return err
		}

		plistPath, err := daemon.PlistPath()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(plistPath), 0755); err != nil {
			return fmt.Errorf("failed to create LaunchAgents directory: %w", err)
		}

		if _, err := os.Stat(plistPath); err == nil {
			fmt.Println("Daemon is already installed. Reloading...")
			if err := bootout(); err != nil {
				fmt.Printf("Warning: failed to unload existing daemon: %v\n", err)
			}
		}

		if err := os.WriteFile(plistPath, []byte(plist), 0644); err != nil {
			return fmt.Errorf("failed to write plist file: %w", err)
		}
		fmt.Printf("✓ Installed plist to %s\n", plistPath)

		if err := bootstrap(plistPath); err != nil {
			return fmt.Errorf("failed to load daemon: %w", err)
		}

		fmt.Println("✓ Daemon loaded and started")
		fmt.Printf("✓ Logs will be written to %s\n", logDir)
		fmt.Println("\nCheck progress with:")
		fmt.Println("  listenlog daemon status")
		fmt.Println("\nTo uninstall, run:")
		fmt.Println("  listenlog uninstall")

		return nil
	},
}

func init() {
	rootCmd.AddCommand(installCmd)
}

// launchdDomain returns the per-user GUI domain, gui/<uid>.
func launchdDomain() string {
	return fmt.Sprintf("gui/%d", os.Getuid())
}

func bootstrap(plistPath string) error {
	out, err := exec.Command("launchctl", "bootstrap", launchdDomain(), plistPath).CombinedOutput()
	if err != nil {
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return fmt.Errorf("launchctl bootstrap failed: %s", msg)
		}
		return fmt.Errorf("failed to run launchctl bootstrap: %w", err)
	}
	return nil
}

func bootout() error {
	out, err := exec.Command("launchctl", "bootout", launchdDomain()+"/"+daemon.Label).CombinedOutput()
	if err != nil {
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return fmt.Errorf("launchctl bootout failed: %s", msg)
		}
		return fmt.Errorf("failed to run launchctl bootout: %w", err)
	}
	return nil
}
