package walrus

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
)

const (
	defaultUpstream = "8.8.8.8:53"
	dnssecTimeout   = 10 * time.Second
	edns0BufSize    = 4096
)

// DNSSECResolver resolves SRV records through a validating recursive
// resolver and rejects answers without the AD flag.
type DNSSECResolver struct {
	Upstream string
	Timeout  time.Duration
}

var _ Resolver = (*DNSSECResolver)(nil)

// NewDNSSECResolver returns a resolver using upstream, or 8.8.8.8:53.
func NewDNSSECResolver(upstream string) *DNSSECResolver {
	if upstream == "" {
		upstream = defaultUpstream
	}
	return &DNSSECResolver{Upstream: upstream, Timeout: dnssecTimeout}
}

func (r *DNSSECResolver) exchange(name string, qtype uint16) (*dns.Msg, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), qtype)
	msg.RecursionDesired = true
	msg.SetEdns0(edns0BufSize, true)

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = dnssecTimeout
	}
	client := &dns.Client{Timeout: timeout}
	resp, _, err := client.Exchange(msg, r.Upstream)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrDiscoveryFailed, name, dns.TypeToString[qtype], err)
	}
	if resp.Rcode != dns.RcodeSuccess && resp.Rcode != dns.RcodeNameError {
		return nil, fmt.Errorf("%w: %s %s: rcode %s", ErrDiscoveryFailed, name,
			dns.TypeToString[qtype], dns.RcodeToString[resp.Rcode])
	}
	if !resp.AuthenticatedData {
		return nil, fmt.Errorf("%w: %s %s", ErrDNSSECValidationFailed, name, dns.TypeToString[qtype])
	}
	return resp, nil
}

// LookupSRV queries _service._proto.name. The canonical name is always empty.
func (r *DNSSECResolver) LookupSRV(service, proto, name string) (string, []*net.SRV, error) {
	qname := fmt.Sprintf("_%s._%s.%s", service, proto, name)
	resp, err := r.exchange(qname, dns.TypeSRV)
	if err != nil {
		return "", nil, err
	}

	var srvs []*net.SRV
	for _, rr := range resp.Answer {
		if srv, ok := rr.(*dns.SRV); ok {
			srvs = append(srvs, &net.SRV{
				Target:   strings.TrimSuffix(srv.Target, "."),
				Port:     srv.Port,
				Priority: srv.Priority,
				Weight:   srv.Weight,
			})
		}
	}
	if len(srvs) == 0 {
		return "", nil, fmt.Errorf("%w: no SRV records for %s", ErrDiscoveryFailed, qname)
	}
	return "", srvs, nil
}
