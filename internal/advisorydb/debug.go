package advisorydb

import (
	"net/http"
	"net/http/httputil"

	"github.com/go-git/go-git/v5/plumbing/transport/client"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"

	"github.com/rustsec/cargo-audit-go/internal/logging"
)

// wireTransport is an http.RoundTripper that dumps each exchange with the
// advisory database upstream to the debug log. Bodies are omitted, the
// packfile stream is binary.
type wireTransport struct {
	next http.RoundTripper
	log  *logging.Logger
}

// InstallDebugTransport replaces the https git transport with one that logs
// every request and response at debug level. The replacement is global to
// the process.
func InstallDebugTransport(log *logging.Logger) {
	if log == nil {
		log = logging.Default()
	}
	httpClient := &http.Client{Transport: &wireTransport{next: http.DefaultTransport, log: log}}
	client.InstallProtocol("https", githttp.NewClient(httpClient))
}

func (t *wireTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if dump, err := httputil.DumpRequestOut(req, false); err == nil {
		t.log.Debugf("git request:\n%s", dump)
	}
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		t.log.Debugf("git request failed: %v", err)
		return nil, err
	}
	if dump, err := httputil.DumpResponse(resp, false); err == nil {
		t.log.Debugf("git response:\n%s", dump)
	}
	return resp, nil
}
