package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/javanstorm/toolchainqa/internal/config"
	"github.com/javanstorm/toolchainqa/internal/vm"
)

var keyDir string

var sshKeygenCmd = &cobra.Command{
	Use:   "ssh-keygen",
	Short: "Generate an SSH key for guest access",
	Long: `Generate an ed25519 key pair for logging into test images that do not
allow root with an empty password.`,
	Args: cobra.NoArgs,
	RunE: runSSHKeygen,
}

func init() {
	sshKeygenCmd.Flags().StringVar(&keyDir, "dir", "", "directory for the key pair (default ~/.toolchainqa/ssh)")
}

func runSSHKeygen(cmd *cobra.Command, args []string) error {
	dir := keyDir
	if dir == "" {
		paths, err := config.GetPaths()
		if err != nil {
			return fmt.Errorf("determine paths: %w", err)
		}
		dir = paths.SSHKeyDir()
	}

	privPath, pubPath, err := vm.GenerateKeyPair(dir)
	if err != nil {
		return err
	}

	pub, err := os.ReadFile(pubPath)
	if err != nil {
		return fmt.Errorf("read public key: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Private key: %s\n", privPath)
	fmt.Fprintf(out, "Public key:  %s\n", pubPath)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Install the public key as /root/.ssh/authorized_keys in the test image:")
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  %s\n", strings.TrimSpace(string(pub)))
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Then point the configuration at the private key:")
	fmt.Fprintf(out, "  ssh:\n    key_path: %s\n", privPath)
	return nil
}
