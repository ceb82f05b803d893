package walrus

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticResolver struct {
	srvs []*net.SRV
	err  error
	got  string
}

func (r *staticResolver) LookupSRV(service, proto, name string) (string, []*net.SRV, error) {
	r.got = "_" + service + "._" + proto + "." + name
	return "", r.srvs, r.err
}

func TestDiscoverNodesOrdering(t *testing.T) {
	r := &staticResolver{srvs: []*net.SRV{
		{Target: "c.example.", Port: 9000, Priority: 20, Weight: 100},
		{Target: "a.example.", Port: 9001, Priority: 10, Weight: 5},
		{Target: "b.example.", Port: 9002, Priority: 10, Weight: 50},
	}}
	urls, err := DiscoverNodes("example", r)
	require.NoError(t, err)
	assert.Equal(t, "_walrus._tcp.example", r.got)
	assert.Equal(t, []string{
		"http://b.example:9002",
		"http://a.example:9001",
		"http://c.example:9000",
	}, urls)
}

func TestDiscoverNodesErrors(t *testing.T) {
	_, err := DiscoverNodes("", &staticResolver{})
	assert.ErrorIs(t, err, ErrDiscoveryFailed)

	_, err = DiscoverNodes("example", &staticResolver{})
	assert.ErrorIs(t, err, ErrDiscoveryFailed)

	boom := errors.New("servfail")
	_, err = DiscoverNodes("example", &staticResolver{err: boom})
	assert.ErrorIs(t, err, ErrDiscoveryFailed)
	assert.ErrorIs(t, err, boom)
}

// startDNS serves one SRV record for _walrus._tcp.storage.test. from a
// local UDP socket.
func startDNS(t *testing.T, authenticated bool) string {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	mux := dns.NewServeMux()
	mux.HandleFunc("storage.test.", func(w dns.ResponseWriter, req *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(req)
		m.AuthenticatedData = authenticated
		if req.Question[0].Qtype == dns.TypeSRV {
			m.Answer = append(m.Answer, &dns.SRV{
				Hdr:      dns.RR_Header{Name: req.Question[0].Name, Rrtype: dns.TypeSRV, Class: dns.ClassINET, Ttl: 60},
				Priority: 10,
				Weight:   5,
				Port:     31415,
				Target:   "node1.storage.test.",
			})
		}
		_ = w.WriteMsg(m)
	})

	started := make(chan struct{})
	srv := &dns.Server{PacketConn: pc, Handler: mux, NotifyStartedFunc: func() { close(started) }}
	go func() { _ = srv.ActivateAndServe() }()
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("dns server did not start")
	}
	t.Cleanup(func() { _ = srv.Shutdown() })
	return pc.LocalAddr().String()
}

func TestDNSSECResolverAuthenticated(t *testing.T) {
	r := NewDNSSECResolver(startDNS(t, true))
	r.Timeout = 2 * time.Second

	urls, err := DiscoverNodes("storage.test", r)
	require.NoError(t, err)
	assert.Equal(t, []string{"http://node1.storage.test:31415"}, urls)
}

func TestDNSSECResolverRequiresAD(t *testing.T) {
	r := NewDNSSECResolver(startDNS(t, false))
	r.Timeout = 2 * time.Second

	_, _, err := r.LookupSRV(SRVService, "tcp", "storage.test")
	assert.ErrorIs(t, err, ErrDNSSECValidationFailed)
}

func TestNewDNSSECResolverDefault(t *testing.T) {
	assert.Equal(t, "8.8.8.8:53", NewDNSSECResolver("").Upstream)
}
