/*
 * Copyright (c) 2026, Oracle and/or its affiliates.
 * Licensed under the Universal Permissive License v 1.0 as shown at
 * https://oss.oracle.com/licenses/upl.
 */
package tcp

import (
	"context"
	"crypto/tls"
	"net"
	"strconv"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"github.com/thejerf/suture/v4"

	"github.com/oracle/coherence-go-extend-client/cmn"
	"github.com/oracle/coherence-go-extend-client/peer"
	"github.com/oracle/coherence-go-extend-client/wire"
)

// redirect chains longer than this indicate a routing loop on the cluster
// side.
const maxRedirects = 8

type (
	// Initiator is the client-role connection factory: it owns a peer
	// service, dials candidate addresses from its provider, follows
	// redirect answers, and hands out at most one open connection at a
	// time via EnsureConnection.
	Initiator struct {
		mu        sync.Mutex
		peer      *peer.Peer
		cfg       *cmn.Config
		provider  AddressProvider
		tlsConf   *tls.Config
		subport   int32
		principal any
		conn      *peer.Connection
		sup       *suture.Supervisor
		cancel    context.CancelFunc
		supErr    <-chan error
		log       *logrus.Entry
	}

	Option func(*Initiator, *[]peer.Option)
)

func WithTLS(c *tls.Config) Option {
	return func(it *Initiator, _ *[]peer.Option) { it.tlsConf = c }
}

func WithSubport(sp int32) Option {
	return func(it *Initiator, _ *[]peer.Option) { it.subport = sp }
}

func WithPrincipal(v any) Option {
	return func(it *Initiator, _ *[]peer.Option) { it.principal = v }
}

func WithProvider(p AddressProvider) Option {
	return func(it *Initiator, _ *[]peer.Option) { it.provider = p }
}

// WithPeerOptions forwards options to the underlying peer service.
func WithPeerOptions(opts ...peer.Option) Option {
	return func(_ *Initiator, peerOpts *[]peer.Option) {
		*peerOpts = append(*peerOpts, opts...)
	}
}

func NewInitiator(cfg *cmn.Config, opts ...Option) (*Initiator, error) {
	cfg = cfg.Clone()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	it := &Initiator{
		cfg:     cfg,
		subport: wire.SubportNone,
		log:     logrus.WithField("comp", "tcp-initiator"),
	}
	var peerOpts []peer.Option
	for _, opt := range opts {
		opt(it, &peerOpts)
	}
	if it.provider == nil {
		it.provider = NewStaticProvider(cfg.RemoteAddresses...)
	}
	p, err := peer.New(cfg, peerOpts...)
	if err != nil {
		return nil, err
	}
	it.peer = p
	it.sup = suture.NewSimple("tcp-initiator")
	it.sup.Add(p)
	return it, nil
}

func (it *Initiator) Peer() *peer.Peer { return it.peer }

// Start runs the peer service in the background and waits for it to come
// up.
func (it *Initiator) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	it.cancel = cancel
	it.supErr = it.sup.ServeBackground(ctx)
	return it.peer.WaitStarted(ctx)
}

// Stop cancels the service; open connections are closed gracefully by the
// peer's shutdown.
func (it *Initiator) Stop() {
	it.mu.Lock()
	it.conn = nil
	it.mu.Unlock()
	if it.cancel != nil {
		it.cancel()
		<-it.supErr
	}
}

// EnsureConnection returns the current open connection, or opens a new one.
func (it *Initiator) EnsureConnection() (*peer.Connection, error) {
	it.mu.Lock()
	defer it.mu.Unlock()
	if it.conn != nil && it.conn.IsOpen() {
		return it.conn, nil
	}
	it.conn = nil
	c, err := it.openConnection()
	if err != nil {
		return nil, err
	}
	it.conn = c
	return c, nil
}

// openConnection walks the address provider; every candidate - and every
// redirect target a candidate answers with - is attempted before giving up.
func (it *Initiator) openConnection() (*peer.Connection, error) {
	var (
		attempts  *multierror.Error
		attempted []string
	)
	for {
		addr, ok := it.provider.Next()
		if !ok {
			return nil, cmn.NewErrConnectionCause(attempts.ErrorOrNil(),
				"could not open a connection to any of %v", attempted)
		}
		attempted = append(attempted, addr)

		c, err := it.openAt(addr, it.subport)
		if err == nil {
			it.provider.Accept()
			return c, nil
		}
		if peer.IsRedirect(err) {
			c2, rerr := it.followRedirects(c.Redirects())
			if rerr == nil {
				it.provider.Accept()
				return c2, nil
			}
			err = rerr
		}
		it.provider.Reject(err)
		attempts = multierror.Append(attempts, err)
	}
}

func (it *Initiator) openAt(addr string, subport int32) (*peer.Connection, error) {
	ctx := context.Background()
	if timeout := it.cfg.ConnectTimeout.D(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	stream, err := Dial(ctx, addr, it.cfg, it.tlsConf, subport, it.log)
	if err != nil {
		return nil, err
	}
	return it.peer.OpenConnection(context.Background(), stream, it.tlsConf != nil, it.principal)
}

// followRedirects attempts every redirect target in order, resolving hosts
// under the connect timeout; unresolvable targets are skipped with a
// warning. A target may itself redirect, up to maxRedirects hops.
func (it *Initiator) followRedirects(targets []peer.Redirect) (*peer.Connection, error) {
	var merr *multierror.Error
	queue := append([]peer.Redirect(nil), targets...)
	for hops := 0; len(queue) > 0 && hops < maxRedirects; hops++ {
		t := queue[0]
		queue = queue[1:]

		base, sub := wire.SplitPort32(t.Port32)
		host, err := it.resolve(t.Host)
		if err != nil {
			it.log.WithError(err).Warnf("skipping unresolvable redirect target %q", t.Host)
			merr = multierror.Append(merr, err)
			continue
		}
		addr := net.JoinHostPort(host, strconv.Itoa(int(base)))
		it.log.Infof("redirected to %s (subport %d)", addr, sub)

		c, err := it.openAt(addr, sub)
		if err == nil {
			return c, nil
		}
		if peer.IsRedirect(err) {
			queue = append(queue, c.Redirects()...)
			continue
		}
		merr = multierror.Append(merr, err)
	}
	return nil, cmn.NewErrConnectionCause(merr.ErrorOrNil(), "redirect targets exhausted")
}

func (it *Initiator) resolve(host string) (string, error) {
	ctx := context.Background()
	if timeout := it.cfg.ConnectTimeout.D(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	addrs, err := net.DefaultResolver.LookupHost(ctx, host)
	if err != nil {
		return "", err
	}
	return addrs[0], nil
}
