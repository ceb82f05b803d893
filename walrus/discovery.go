package walrus

import (
	"fmt"
	"net"
	"sort"
	"strings"
)

// SRVService is the SRV service label of storage nodes: _walrus._tcp.{domain}.
const SRVService = "walrus"

// Resolver looks up SRV records. Tests substitute their own.
type Resolver interface {
	LookupSRV(service, proto, name string) (string, []*net.SRV, error)
}

type netResolver struct{}

func (netResolver) LookupSRV(service, proto, name string) (string, []*net.SRV, error) {
	return net.LookupSRV(service, proto, name)
}

// DefaultResolver uses the system resolver.
var DefaultResolver Resolver = netResolver{}

// DiscoverNodes returns http://host:port base URLs of the storage nodes
// advertised for domain, ordered by priority then weight.
func DiscoverNodes(domain string, resolver Resolver) ([]string, error) {
	if domain == "" {
		return nil, fmt.Errorf("%w: empty domain", ErrDiscoveryFailed)
	}
	if resolver == nil {
		resolver = DefaultResolver
	}

	_, addrs, err := resolver.LookupSRV(SRVService, "tcp", domain)
	if err != nil {
		return nil, fmt.Errorf("%w: _%s._tcp.%s: %w", ErrDiscoveryFailed, SRVService, domain, err)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("%w: no SRV records for _%s._tcp.%s", ErrDiscoveryFailed, SRVService, domain)
	}

	sort.SliceStable(addrs, func(i, j int) bool {
		if addrs[i].Priority != addrs[j].Priority {
			return addrs[i].Priority < addrs[j].Priority
		}
		return addrs[i].Weight > addrs[j].Weight
	})

	urls := make([]string, len(addrs))
	for i, srv := range addrs {
		host := strings.TrimSuffix(srv.Target, ".")
		urls[i] = "http://" + net.JoinHostPort(host, fmt.Sprint(srv.Port))
	}
	return urls, nil
}
