package csrprov

import (
	"github.com/lamhaoyin/openpgpingest/xlog"
	"github.com/lamhaoyin/openpgpingest/xpki/cryptoprov"
)

var logger = xlog.NewPackageLogger("github.com/lamhaoyin/openpgpingest/xpki", "csrprov")

// Provider extends cryptoprov.Crypto functionality to support CSP procesing
// and certificate signing
type Provider struct {
	provider cryptoprov.Provider
}

// New returns an instance of CSR provider
func New(provider cryptoprov.Provider) *Provider {
	return &Provider{
		provider: provider,
	}
}
