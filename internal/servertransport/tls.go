package servertransport

import "crypto/tls"

// insecureTLSConfig returns a *tls.Config accepting any certificate and any
// handshake signature across the schemes RustSyncCV servers are expected to
// present (ECDSA-P256, Ed25519, RSA-PKCS1-SHA256). InsecureSkipVerify alone
// would silently accept anything; the explicit VerifyConnection hook exists
// so the intent — "trust_insecure_cert was set" — is visible at the call
// site and in a debugger, not buried in a bare boolean.
func insecureTLSConfig() *tls.Config {
	return &tls.Config{
		InsecureSkipVerify: true,
		VerifyConnection: func(cs tls.ConnectionState) error {
			// Any certificate is accepted; this hook exists purely so the
			// override is explicit rather than relying on the bare flag.
			return nil
		},
	}
}
