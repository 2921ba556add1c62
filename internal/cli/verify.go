package cli

import (
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"license-signing-system/internal/config"
	"license-signing-system/internal/hwid"
	"license-signing-system/internal/license"
)

// ErrInvalidLicense verify 命令在许可证无效时返回，main 据此以非零状态退出
var ErrInvalidLicense = errors.New("license is invalid")

type verifyOptions struct {
	publicKey string
	hwid      string
	asJSON    bool
	signing   signingFlags
}

func newVerifyCmd(app *App) *cobra.Command {
	var opts verifyOptions
	cmd := &cobra.Command{
		Use:   "verify LICENSE_FILE",
		Short: "Verify a license file on this machine",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runVerify(app, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.publicKey, "public-key", "",
		"Only accept ECDSA licenses signed by this PEM public key.")
	cmd.Flags().StringVar(&opts.hwid, "hwid", "",
		"Check hardware binding against this fingerprint instead of the local machine.")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false,
		"Print the verification result as JSON.")
	opts.signing.register(cmd)
	return cmd
}

func runVerify(app *App, path string, opts verifyOptions) error {
	data, err := afero.ReadFile(app.Fs, path)
	if err != nil {
		return fmt.Errorf("read license file: %w", err)
	}

	keys, err := config.LoadKeyMaterial(app.Fs, opts.signing.config())
	if err != nil {
		return err
	}

	var pinned *ecdsa.PublicKey
	if opts.publicKey != "" {
		pem, err := afero.ReadFile(app.Fs, opts.publicKey)
		if err != nil {
			return fmt.Errorf("read public key: %w", err)
		}
		if pinned, err = license.ParsePublicKey(string(pem)); err != nil {
			return err
		}
	}

	hardware := app.Hardware
	if opts.hwid != "" {
		hardware = hwid.Static(opts.hwid)
	}

	res := license.VerifyBytes(data, license.VerifyOptions{
		Secret:    keys.Secret,
		PinnedKey: pinned,
		Hardware:  hardware,
		Now:       app.Now,
	})

	if opts.asJSON {
		out, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(app.Out, string(out))
	} else {
		printResult(app, res)
	}

	if !res.Valid() {
		return ErrInvalidLicense
	}
	return nil
}

func printResult(app *App, res license.Result) {
	if res.Valid() {
		fmt.Fprintln(app.Out, "许可证有效")
	} else {
		fmt.Fprintln(app.Out, "许可证无效")
		for _, r := range res.Reasons {
			fmt.Fprintf(app.Out, "  - %s\n", r)
		}
	}
	if res.Claims != nil {
		c := res.Claims
		fmt.Fprintf(app.Out, "许可证密钥: %s\n客户: %s\n产品: %s\n", c.Key, c.Customer, c.Product)
		if c.Perpetual() {
			fmt.Fprintln(app.Out, "到期日期: 永久")
		} else {
			fmt.Fprintf(app.Out, "到期日期: %s\n", *c.ExpiresAt)
		}
	}
}
