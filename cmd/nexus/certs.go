package main

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"meridian-hq/nexus/pkg/cli"
	tlsutil "meridian-hq/nexus/pkg/security/tls"
)

var certsCmd = &cobra.Command{
	Use:   "certs",
	Short: "Inspect TLS certificates",
	Long: `Inspect the TLS material used by the gateway listener.

Subcommands:
  check - Validate the listener certificate, key and client CA bundle`,
}

var certsCheckFlags struct {
	certFile string
	keyFile  string
	caFile   string
	output   string
}

var certsCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the listener certificate and key",
	Long: `Validate a TLS certificate and private key.

By default the files named in security.tls of the configuration are checked;
--cert, --key and --ca override them. This command validates:
  - Certificate and key pair match
  - Certificate is currently valid
  - Certificate expiration warnings (<30 days)
  - Certificate chain against the client CA bundle (if given)

Examples:
  # Check the configured listener certificate
  nexus certs check

  # Check explicit files
  nexus certs check --cert server.crt --key server.key --ca ca.pem`,
	RunE: checkCertificate,
}

func init() {
	rootCmd.AddCommand(certsCmd)
	certsCmd.AddCommand(certsCheckCmd)

	certsCheckCmd.Flags().StringVar(&certsCheckFlags.certFile, "cert", "", "certificate file (default security.tls.cert_file)")
	certsCheckCmd.Flags().StringVar(&certsCheckFlags.keyFile, "key", "", "private key file (default security.tls.key_file)")
	certsCheckCmd.Flags().StringVar(&certsCheckFlags.caFile, "ca", "", "CA bundle to verify the chain against")
	addOutputFlag(certsCheckCmd, &certsCheckFlags.output)
}

// certReport is the structured output of nexus certs check.
type certReport struct {
	CertFile  string    `json:"cert_file"`
	Subject   string    `json:"subject"`
	Issuer    string    `json:"issuer"`
	DNSNames  []string  `json:"dns_names"`
	NotBefore time.Time `json:"not_before"`
	NotAfter  time.Time `json:"not_after"`
	DaysLeft  int       `json:"days_left"`
	Warning   string    `json:"warning,omitempty"`
	ChainOK   *bool     `json:"chain_verified,omitempty"`
}

func checkCertificate(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(certsCheckFlags.output)
	if err != nil {
		return err
	}

	certFile, keyFile, caFile := certsCheckFlags.certFile, certsCheckFlags.keyFile, certsCheckFlags.caFile
	if certFile == "" || keyFile == "" {
		cfg, err := loadConfig(cmd.Context())
		if err != nil {
			return err
		}
		if certFile == "" {
			certFile = cfg.Security.TLS.CertFile
		}
		if keyFile == "" {
			keyFile = cfg.Security.TLS.KeyFile
		}
		if caFile == "" {
			caFile = cfg.Security.TLS.MTLS.ClientCAFile
		}
	}
	if certFile == "" || keyFile == "" {
		return cli.NewConfigError("security.tls", "cert_file and key_file are required")
	}

	report, err := inspectCertificate(certFile, keyFile, caFile, time.Now())
	if err != nil {
		return cli.NewCommandError("certs check", err)
	}

	table := &cli.Table{Headers: []string{"FIELD", "VALUE"}}
	table.AddRow("cert_file", report.CertFile)
	table.AddRow("subject", report.Subject)
	table.AddRow("issuer", report.Issuer)
	table.AddRow("dns_names", strings.Join(report.DNSNames, ","))
	table.AddRow("not_before", report.NotBefore.Format(time.RFC3339))
	table.AddRow("not_after", report.NotAfter.Format(time.RFC3339))
	table.AddRow("days_left", strconv.Itoa(report.DaysLeft))
	if report.ChainOK != nil {
		table.AddRow("chain_verified", strconv.FormatBool(*report.ChainOK))
	}
	if report.Warning != "" {
		table.AddRow("warning", report.Warning)
	}
	return cli.Write(cmd.OutOrStdout(), format, report, table)
}

// inspectCertificate loads the key pair, validates the leaf and, when
// caFile is set, verifies the chain against it.
func inspectCertificate(certFile, keyFile, caFile string, now time.Time) (*certReport, error) {
	pair, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("certificate and key do not load as a pair: %w", err)
	}
	if err := tlsutil.ValidateCertificate(&pair); err != nil {
		return nil, err
	}

	leaf, err := x509.ParseCertificate(pair.Certificate[0])
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}

	days, warning := tlsutil.CheckCertificateExpiration(leaf, now)
	report := &certReport{
		CertFile:  certFile,
		Subject:   leaf.Subject.String(),
		Issuer:    leaf.Issuer.String(),
		DNSNames:  leaf.DNSNames,
		NotBefore: leaf.NotBefore,
		NotAfter:  leaf.NotAfter,
		DaysLeft:  days,
		Warning:   warning,
	}

	if caFile != "" {
		caPEM, err := os.ReadFile(caFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA bundle: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, fmt.Errorf("no certificates found in %s", caFile)
		}
		_, verr := leaf.Verify(x509.VerifyOptions{
			Roots:       pool,
			CurrentTime: now,
			KeyUsages:   []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
		})
		ok := verr == nil
		report.ChainOK = &ok
		if !ok {
			report.Warning = strings.TrimSpace(report.Warning + " chain: " + verr.Error())
		}
	}
	return report, nil
}
