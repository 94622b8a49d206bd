/*
Package tls serves the gateway over HTTPS.

ServerConfig turns the security.tls section into a *tls.Config whose
certificate comes from a CertificateReloader, so renewed certificate files
are picked up without a restart:

	reloader := tls.NewCertificateReloader(cfg.CertFile, cfg.KeyFile, cfg.ReloadInterval, logger)
	if err := reloader.Start(ctx); err != nil {
		return err
	}
	tlsConfig, err := tls.ServerConfig(&cfg, reloader)

With mTLS enabled, client certificates are verified against client_ca_file
and ClientIdentity reports the configured certificate field for request
logs.
*/
package tls
