package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/infrapanel/internal/adapter/driven/sqlstore"
	"github.com/ericfisherdev/infrapanel/internal/application"
	"github.com/ericfisherdev/infrapanel/internal/config"
	"github.com/ericfisherdev/infrapanel/internal/domain/model"
	"github.com/ericfisherdev/infrapanel/internal/encryption"
)

const (
	envOldKey   = "INFRAPANEL_OLD_ENCRYPTION_KEY"
	envPassword = "INFRAPANEL_ROTATE_PASSWORD"
)

// errRowsFailed signals a finished run with row-level errors. The report has
// already been printed, so main only sets the exit code.
var errRowsFailed = errors.New("some rows could not be rotated")

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "rotatekeys",
		Short:         "Rotate the infrapanel secret encryption key",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRotateCommand(), newGenerateKeyCommand())
	return root
}

type rotateOptions struct {
	user   string
	oldKey string
	dryRun bool
}

func newRotateCommand() *cobra.Command {
	var opts rotateOptions

	cmd := &cobra.Command{
		Use:   "rotate",
		Short: "Re-encrypt all stored secrets from the old key to the configured key",
		Long: `Re-encrypts every stored password from the previous key to the key in
INFRAPANEL_ENCRYPTION_KEY, in a single transaction.

The previous key is read from --old-key or ` + envOldKey + `.
The admin password is read from ` + envPassword + `, or from the
first line of standard input when that variable is unset.

Rows that cannot be decrypted with the old key are reported as warnings and
left alone, so running the command twice is safe.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.oldKey == "" {
				opts.oldKey = os.Getenv(envOldKey)
			}
			return runRotate(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.user, "user", "", "Admin username to authenticate as (required)")
	cmd.Flags().StringVar(&opts.oldKey, "old-key", "", "Previous encryption key, base64 (prefer "+envOldKey+")")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Report what would change without writing anything")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func runRotate(ctx context.Context, in io.Reader, out, errOut io.Writer, opts rotateOptions) error {
	if opts.oldKey == "" {
		return fmt.Errorf("old key is required: use --old-key or %s", envOldKey)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if !cfg.HasEncryptionKey() {
		return errors.New("INFRAPANEL_ENCRYPTION_KEY is not set; configure the new key first")
	}
	logger := cfg.NewLogger(errOut)

	newCipher, err := encryption.NewCipherFromBase64(cfg.EncryptionKey)
	if err != nil {
		return fmt.Errorf("INFRAPANEL_ENCRYPTION_KEY: %w", err)
	}
	if _, err := encryption.ParseKey(opts.oldKey); err != nil {
		return fmt.Errorf("old key: %w", err)
	}

	password, err := readPassword(in)
	if err != nil {
		return err
	}

	db, err := sqlstore.Open(ctx, sqlstore.Dialect(cfg.DBDriver), cfg.DBPath, cfg.DBDSN)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := sqlstore.RunMigrations(db); err != nil {
		return err
	}

	auth := application.NewAuthService(sqlstore.NewUserRepo(db), logger)
	principal, err := auth.Authenticate(ctx, opts.user, password)
	if err != nil {
		return err
	}
	if !principal.IsAdmin() {
		return fmt.Errorf("user %q is not an admin", principal.Username)
	}

	svc := application.NewRotationService(sqlstore.NewSecretRepo(db), newCipher, nil, logger)
	report, err := svc.Rotate(ctx, opts.oldKey, application.RotateOptions{DryRun: opts.dryRun})
	if err != nil {
		return err
	}

	printReport(out, report)
	if report.Err() != nil {
		return errRowsFailed
	}
	return nil
}

func readPassword(in io.Reader) (string, error) {
	if v, ok := os.LookupEnv(envPassword); ok {
		return v, nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", fmt.Errorf("admin password is required: set %s or pipe it on stdin", envPassword)
	}
	return line, nil
}

func printReport(w io.Writer, r *model.RotationReport) {
	mode := "rotation"
	if r.DryRun {
		mode = "dry run (no changes written)"
	}
	fmt.Fprintf(w, "Run %s: %s\n\n", r.RunID, mode)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TABLE\tSCANNED\tRE-ENCRYPTED")
	for _, t := range r.Tables {
		fmt.Fprintf(tw, "%s\t%d\t%d\n", t.Table, t.Scanned, t.Updated)
	}
	_ = tw.Flush()

	if len(r.Issues) > 0 {
		fmt.Fprintln(w)
		for _, issue := range r.Issues {
			fmt.Fprintln(w, issue.String())
		}
	}

	fmt.Fprintf(w, "\n%d re-encrypted, %d warning(s), %d error(s)\n", r.Total(), len(r.Warnings()), len(r.Errors()))
}

func newGenerateKeyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "generate-key",
		Short: "Print a new random base64-encoded 32-byte key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := encryption.GenerateKey()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
}
