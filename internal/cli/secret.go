package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"license-signing-system/internal/license"
)

func newSecretCmd(app *App) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Generate a random shared secret for HMAC-SHA256",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			secret, err := license.GenerateSecret()
			if err != nil {
				return err
			}
			if out == "" {
				fmt.Fprintln(app.Out, secret)
				return nil
			}
			if err := writeFile(app.Fs, out, []byte(secret+"\n"), 0o600); err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "共享密钥已写入 %s\n", out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "",
		"Write the secret to this file (mode 0600) instead of stdout.")
	return cmd
}
