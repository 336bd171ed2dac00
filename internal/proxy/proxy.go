// Package proxy runs a forward HTTP proxy that records every request it
// relays into a bin.
package proxy

import (
	"log/slog"
	"net/http"

	"github.com/elazarl/goproxy"

	"requestbin/internal/bin"
	"requestbin/internal/events"
	"requestbin/internal/storage"
)

type Proxy struct {
	*goproxy.ProxyHttpServer

	store   storage.Storage
	binName string
	broker  *events.Broker
	logger  *slog.Logger
}

// New returns a proxy capturing into binName. broker may be nil. Capture
// failures are logged and never stop the request from being forwarded.
func New(store storage.Storage, binName string, broker *events.Broker, logger *slog.Logger) *Proxy {
	p := &Proxy{
		ProxyHttpServer: goproxy.NewProxyHttpServer(),
		store:           store,
		binName:         binName,
		broker:          broker,
		logger:          logger,
	}
	p.OnRequest().DoFunc(p.capture)
	return p
}

func (p *Proxy) capture(r *http.Request, _ *goproxy.ProxyCtx) (*http.Request, *http.Response) {
	in, err := bin.FromHTTP(r)
	if err != nil {
		p.logger.Warn("proxy capture read failed", "url", r.URL.String(), "error", err)
		return r, nil
	}
	req, err := p.store.CreateRequest(p.binName, in)
	if err != nil {
		p.logger.Warn("proxy capture failed", "bin", p.binName, "url", r.URL.String(), "error", err)
		return r, nil
	}
	p.logger.Debug("proxy captured request", "bin", p.binName, "id", req.ID, "method", req.Method, "url", req.URL)
	if p.broker != nil {
		p.broker.Publish(p.binName, req)
	}
	return r, nil
}
