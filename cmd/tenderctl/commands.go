package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cloudx-io/opentender/analytics"
	"github.com/cloudx-io/opentender/attest"
	"github.com/cloudx-io/opentender/config"
	"github.com/cloudx-io/opentender/engine"
)

type rootOptions struct {
	dataDir    string
	configPath string
	logLevel   string
	logFormat  string
}

type filterOptions struct {
	institution string
	from        string
	to          string
	procedures  []string
	categories  []string
	statuses    []string
}

func (o *filterOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.institution, "institution", "", "Institution code")
	cmd.Flags().StringVar(&o.from, "from", "", "Earliest publication date (inclusive)")
	cmd.Flags().StringVar(&o.to, "to", "", "Latest publication date (inclusive)")
	cmd.Flags().StringSliceVar(&o.procedures, "procedure", nil, "Procedure types (repeatable)")
	cmd.Flags().StringSliceVar(&o.categories, "category", nil, "Sector categories (repeatable)")
	cmd.Flags().StringSliceVar(&o.statuses, "status", nil, "Tender statuses (repeatable)")
}

func (o *filterOptions) filters() (analytics.Filters, error) {
	from, ok := analytics.ParseDate(o.from)
	if !ok {
		return analytics.Filters{}, fmt.Errorf("invalid --from date %q", o.from)
	}
	to, ok := analytics.ParseDate(o.to)
	if !ok {
		return analytics.Filters{}, fmt.Errorf("invalid --to date %q", o.to)
	}
	return analytics.Filters{
		InstitutionCode: o.institution,
		DateFrom:        from,
		DateTo:          to,
		ProcedureTypes:  o.procedures,
		Categories:      o.categories,
		Statuses:        o.statuses,
	}, nil
}

func newRootCmd() *cobra.Command {
	var opts rootOptions

	root := &cobra.Command{
		Use:           "tenderctl",
		Short:         "Query procurement CSV exports",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.dataDir, "data", ".", "Directory containing CSV exports")
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML config file (default: built-in)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level override: debug, info, warn, error")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "Log format override: text or json")

	root.AddCommand(
		newDiagnosticsCmd(&opts),
		newIntegrityCmd(&opts),
		newKPIsCmd(&opts),
		newDashboardCmd(&opts),
		newProvidersCmd(&opts),
		newInstitutionsCmd(&opts),
		newDossierCmd(&opts),
		newSuggestCmd(&opts),
		newKeygenCmd(),
		newVerifyCmd(),
	)
	return root
}

// open builds the engine from config and loads the data directory.
func open(cmd *cobra.Command, opts *rootOptions) (*engine.Engine, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if opts.logFormat != "" {
		cfg.Log.Format = opts.logFormat
	}
	logger := cfg.Log.NewLogger(cmd.ErrOrStderr())

	e := engine.New(cfg, engine.WithLogger(logger))
	if err := loadDir(e, opts.dataDir, logger); err != nil {
		return nil, err
	}
	return e, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newDiagnosticsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "diagnostics",
		Short: "Row counts, header mapping and malformed values per table",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open(cmd, opts)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), e.GetDiagnostics())
		},
	}
}

func newIntegrityCmd(opts *rootOptions) *cobra.Command {
	var signKey string
	cmd := &cobra.Command{
		Use:   "integrity",
		Short: "Report orphaned foreign keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open(cmd, opts)
			if err != nil {
				return err
			}
			report, err := e.GetIntegritySummary()
			if err != nil {
				return err
			}
			subject := fmt.Sprintf("snapshot-%d", e.Snapshot().Version)
			return emit(cmd, signKey, attest.KindIntegrity, subject, report)
		},
	}
	cmd.Flags().StringVar(&signKey, "sign-key", "", "PEM private key; prints a signed COSE_Sign1 envelope instead")
	return cmd
}

func newKPIsCmd(opts *rootOptions) *cobra.Command {
	var f filterOptions
	var signKey string
	cmd := &cobra.Command{
		Use:   "kpis",
		Short: "Conversion, desert rate, time to award and concentration",
		RunE: func(cmd *cobra.Command, args []string) error {
			filters, err := f.filters()
			if err != nil {
				return err
			}
			e, err := open(cmd, opts)
			if err != nil {
				return err
			}
			kpis, err := e.GetGeneralKPIs(filters)
			if err != nil {
				return err
			}
			return emit(cmd, signKey, attest.KindKPIs, f.institution, kpis)
		},
	}
	f.register(cmd)
	cmd.Flags().StringVar(&signKey, "sign-key", "", "PEM private key; prints a signed COSE_Sign1 envelope instead")
	return cmd
}

func newDashboardCmd(opts *rootOptions) *cobra.Command {
	var f filterOptions
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Institution dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			filters, err := f.filters()
			if err != nil {
				return err
			}
			e, err := open(cmd, opts)
			if err != nil {
				return err
			}
			dash, err := e.GetInstitutionDashboard(filters)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), dash)
		},
	}
	f.register(cmd)
	return cmd
}

func newProvidersCmd(opts *rootOptions) *cobra.Command {
	var f filterOptions
	cmd := &cobra.Command{
		Use:   "providers",
		Short: "Top providers by amount and by contracts, with sector breakdown",
		RunE: func(cmd *cobra.Command, args []string) error {
			filters, err := f.filters()
			if err != nil {
				return err
			}
			e, err := open(cmd, opts)
			if err != nil {
				return err
			}
			dash, err := e.GetComplementaryDashboard(filters)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), dash)
		},
	}
	f.register(cmd)
	return cmd
}

func newInstitutionsCmd(opts *rootOptions) *cobra.Command {
	var filtersFor string
	cmd := &cobra.Command{
		Use:   "institutions",
		Short: "List institutions, or the filter values of one institution",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open(cmd, opts)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("filters") {
				values, err := e.GetInstitutionFilters(filtersFor)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), values)
			}
			list, err := e.GetInstitutionsList()
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), list)
		},
	}
	cmd.Flags().StringVar(&filtersFor, "filters", "", "Print available filter values for this institution code (empty for all)")
	return cmd
}

func newDossierCmd(opts *rootOptions) *cobra.Command {
	var signKey string
	cmd := &cobra.Command{
		Use:   "dossier <tender-number>",
		Short: "Every record and milestone of one tender",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open(cmd, opts)
			if err != nil {
				return err
			}
			d, err := e.GetTenderDossier(args[0])
			if err != nil {
				return err
			}
			if d == nil {
				return fmt.Errorf("tender %q not found", args[0])
			}
			return emit(cmd, signKey, attest.KindDossier, d.TenderNumber, d)
		},
	}
	cmd.Flags().StringVar(&signKey, "sign-key", "", "PEM private key; prints a signed COSE_Sign1 envelope instead")
	return cmd
}

func newSuggestCmd(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "suggest <query>",
		Short: "Find tenders by number or name",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open(cmd, opts)
			if err != nil {
				return err
			}
			suggestions, err := e.SuggestTenders(strings.Join(args, " "), limit)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), suggestions)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of suggestions")
	return cmd
}

func newKeygenCmd() *cobra.Command {
	var privPath, pubPath string
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a P-256 key pair for signing reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := attest.GenerateKey()
			if err != nil {
				return err
			}
			privPEM, err := attest.PrivateKeyPEM(key)
			if err != nil {
				return err
			}
			pubPEM, err := attest.PublicKeyPEM(&key.PublicKey)
			if err != nil {
				return err
			}
			if err := os.WriteFile(privPath, privPEM, 0o600); err != nil {
				return fmt.Errorf("write private key: %w", err)
			}
			if err := os.WriteFile(pubPath, pubPEM, 0o644); err != nil {
				return fmt.Errorf("write public key: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s and %s\n", privPath, pubPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&privPath, "private", "report-signing.key", "Private key output path")
	cmd.Flags().StringVar(&pubPath, "public", "report-signing.pub", "Public key output path")
	return cmd
}

// verifiedStatement is the JSON view of a verified envelope.
type verifiedStatement struct {
	Kind     string    `json:"kind"`
	Subject  string    `json:"subject,omitempty"`
	IssuedAt time.Time `json:"issued_at"`
	Digest   string    `json:"digest"`
	Report   any       `json:"report"`
}

func newVerifyCmd() *cobra.Command {
	var pubPath string
	cmd := &cobra.Command{
		Use:   "verify <envelope-file>",
		Short: "Verify a signed report envelope and print its contents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pub, err := attest.LoadPublicKey(pubPath)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read envelope: %w", err)
			}
			coseBytes, err := attest.SignedBase64(strings.TrimSpace(string(data))).Decode()
			if err != nil {
				return fmt.Errorf("decode envelope: %w", err)
			}
			stmt, err := attest.Verify(coseBytes, pub)
			if err != nil {
				return err
			}
			var report map[string]any
			if err := stmt.Decode(&report); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), verifiedStatement{
				Kind:     stmt.Kind,
				Subject:  stmt.Subject,
				IssuedAt: stmt.IssuedAt,
				Digest:   stmt.Digest,
				Report:   report,
			})
		},
	}
	cmd.Flags().StringVar(&pubPath, "pub-key", "report-signing.pub", "PEM public key")
	return cmd
}

// emit prints v as JSON, or as a base64 COSE_Sign1 envelope when signKey is set.
func emit(cmd *cobra.Command, signKey, kind, subject string, v any) error {
	if signKey == "" {
		return printJSON(cmd.OutOrStdout(), v)
	}
	key, err := attest.LoadPrivateKey(signKey)
	if err != nil {
		return err
	}
	signed, err := attest.Sign(kind, subject, v, key, time.Now())
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(attest.Encode(signed)))
	return err
}
