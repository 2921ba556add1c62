package cli

import (
	"fmt"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"license-signing-system/internal/license"
)

func newKeygenCmd(app *App) *cobra.Command {
	var privPath, pubPath string
	var force bool
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an ECDSA P-256 key pair",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runKeygen(app, privPath, pubPath, force)
		},
	}

	cmd.Flags().StringVar(&privPath, "private-key", "license_private.pem",
		"Where to write the private key (mode 0600).")
	cmd.Flags().StringVar(&pubPath, "public-key", "license_public.pem",
		"Where to write the public key (mode 0644).")
	cmd.Flags().BoolVarP(&force, "force", "f", false,
		"Overwrite existing key files.")
	return cmd
}

func runKeygen(app *App, privPath, pubPath string, force bool) error {
	if !force {
		for _, p := range []string{privPath, pubPath} {
			exists, err := afero.Exists(app.Fs, p)
			if err != nil {
				return fmt.Errorf("stat %s: %w", p, err)
			}
			if exists {
				return fmt.Errorf("%s already exists, use --force to overwrite", p)
			}
		}
	}

	key, err := license.GenerateKeyPair()
	if err != nil {
		return err
	}
	privPEM, err := license.MarshalPrivateKeyPEM(key)
	if err != nil {
		return err
	}
	pubPEM, err := license.MarshalPublicKeyPEM(&key.PublicKey)
	if err != nil {
		return err
	}

	if err := writeFile(app.Fs, privPath, privPEM, 0o600); err != nil {
		return err
	}
	if err := writeFile(app.Fs, pubPath, []byte(pubPEM), 0o644); err != nil {
		return err
	}

	fmt.Fprintf(app.Out, "私钥已写入 %s\n公钥已写入 %s\n", privPath, pubPath)
	return nil
}

// writeFile 覆盖写入并强制设置权限
func writeFile(fs afero.Fs, path string, data []byte, perm os.FileMode) error {
	if err := afero.WriteFile(fs, path, data, perm); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := fs.Chmod(path, perm); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	return nil
}
