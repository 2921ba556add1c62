package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"license-signing-system/internal/config"
	"license-signing-system/internal/hwid"
	"license-signing-system/internal/license"
)

type issueOptions struct {
	key       string
	customer  string
	product   string
	seats     int
	issuedAt  string
	expiresAt string
	notes     string
	algorithm string
	out       string

	bindHWID bool
	hwid     string

	archive bool
	db      dbFlags
	signing signingFlags
}

func newIssueCmd(app *App) *cobra.Command {
	var opts issueOptions
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Sign a license and write it to a file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var notes *string
			if cmd.Flags().Changed("notes") {
				notes = license.StringPtr(opts.notes)
			}
			return runIssue(app, opts, notes)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.key, "key", "", "License key. Generated when empty.")
	flags.StringVar(&opts.customer, "customer", "", "Customer name.")
	flags.StringVar(&opts.product, "product", "", "Product name.")
	flags.IntVar(&opts.seats, "seats", 1, "Number of seats.")
	flags.StringVar(&opts.issuedAt, "issued", "", "Issue date (YYYY-MM-DD). Defaults to today.")
	flags.StringVar(&opts.expiresAt, "expires", "", "Expiry date (YYYY-MM-DD). Perpetual when empty.")
	flags.StringVar(&opts.notes, "notes", "", "Free-form notes covered by the signature.")
	flags.StringVarP(&opts.algorithm, "algorithm", "a", string(license.AlgorithmECDSAP256SHA256),
		"HMAC-SHA256 or ECDSA-P256-SHA256.")
	flags.StringVarP(&opts.out, "out", "o", "", "Output file. Defaults to <customer>_<product>.license.json.")
	flags.BoolVar(&opts.bindHWID, "bind-hwid", false, "Bind the license to this machine.")
	flags.StringVar(&opts.hwid, "hwid", "", "Bind the license to the given machine fingerprint.")
	flags.BoolVar(&opts.archive, "archive", false, "Record the issued license in the archive database.")
	flags.StringVar(&opts.signing.privateKey, "private-key", "", "PEM file holding the ECDSA private key.")
	opts.signing.register(cmd)
	opts.db.register(cmd)

	_ = cmd.MarkFlagRequired("customer")
	_ = cmd.MarkFlagRequired("product")
	return cmd
}

func runIssue(app *App, opts issueOptions, notes *string) error {
	mode, err := license.ParseMode(opts.algorithm)
	if err != nil {
		return err
	}
	claims, err := opts.claims(app, notes)
	if err != nil {
		return err
	}

	keys, err := config.LoadKeyMaterial(app.Fs, opts.signing.config())
	if err != nil {
		return err
	}

	issueOpts := license.IssueOptions{}
	switch {
	case opts.hwid != "":
		issueOpts.BindHWID = true
		issueOpts.Hardware = hwid.Static(opts.hwid)
	case opts.bindHWID:
		issueOpts.BindHWID = true
		issueOpts.Hardware = app.Hardware
	}

	doc, err := license.Issue(claims, mode, keys, issueOpts)
	if err != nil {
		return err
	}
	data, err := doc.Marshal()
	if err != nil {
		return err
	}

	path := opts.out
	if path == "" {
		path = doc.FileName()
	}
	if err := writeFile(app.Fs, path, data, 0o644); err != nil {
		return err
	}

	app.Log.Info("许可证已签发",
		zap.String("key", doc.Claims.Key),
		zap.String("algorithm", string(doc.Algorithm)),
		zap.String("file", path),
	)
	printSummary(app.Out, doc, app.today())
	fmt.Fprintf(app.Out, "许可证文件: %s\n", path)

	if opts.archive {
		// 文件已经写出，归档失败只提示
		if err := archiveDocument(app, opts.db.config(), doc, data); err != nil {
			app.Log.Warn("许可证归档失败", zap.String("key", doc.Claims.Key), zap.Error(err))
			fmt.Fprintf(app.Out, "警告: 归档失败: %v\n", err)
		} else {
			fmt.Fprintln(app.Out, "已归档")
		}
	}
	return nil
}

func (o issueOptions) claims(app *App, notes *string) (license.Claims, error) {
	claims := license.Claims{
		Version:  license.CurrentVersion,
		Key:      o.key,
		Customer: o.customer,
		Product:  o.product,
		Seats:    o.seats,
		IssuedAt: app.today(),
		Notes:    notes,
	}
	if o.issuedAt != "" {
		d, err := license.ParseDate(o.issuedAt)
		if err != nil {
			return claims, fmt.Errorf("--issued: %w", err)
		}
		claims.IssuedAt = d
	}
	if o.expiresAt != "" {
		d, err := license.ParseDate(o.expiresAt)
		if err != nil {
			return claims, fmt.Errorf("--expires: %w", err)
		}
		claims.ExpiresAt = &d
	}
	return claims, nil
}

func archiveDocument(app *App, cfg config.DatabaseConfig, doc *license.Document, data []byte) error {
	archive, err := app.OpenArchive(cfg)
	if err != nil {
		return err
	}
	_, err = archive.Store(context.Background(), license.NewArchiveRecord(doc, data, app.Now()))
	return err
}

func (a *App) today() license.Date {
	return license.DateOf(a.Now())
}
