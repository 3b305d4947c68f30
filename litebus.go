// Package litebus is the process-wide facade: one call wires config,
// the actor system, the timer service, and the HTTP and framed-TCP
// transports together and starts them, mirroring the single
// initialize()/finalize() entry point litebus.hpp exposes. Most
// programs only need this file; actorsys, timer, httpd and wire remain
// directly importable for anything the facade doesn't cover.
package litebus

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/najoast/litebus/actorsys"
	"github.com/najoast/litebus/aid"
	"github.com/najoast/litebus/bootstrap"
	"github.com/najoast/litebus/config"
	"github.com/najoast/litebus/httpd"
	"github.com/najoast/litebus/timer"
	"github.com/najoast/litebus/wire"
)

// Process is one running litebus instance: an actor system, a timer
// service, and (if Config.Network.HTTPBindURL/TCPBindURL are set) HTTP
// and framed-TCP transports, started together and stopped together.
type Process struct {
	app   bootstrap.Application
	sys   *actorsys.System
	timer *timer.Service
	log   *logrus.Entry
}

// Initialize builds a Process from cfg (config.DefaultConfig if nil),
// starts its services, and returns it ready for Spawn/Send. log may be
// nil to use logrus's standard logger.
func Initialize(cfg *config.Config, log *logrus.Entry) (*Process, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	app := bootstrap.NewApplication(log)
	if err := app.Configure(cfg); err != nil {
		return nil, err
	}

	startCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.LifecycleManager().Start(startCtx); err != nil {
		return nil, err
	}

	var sys *actorsys.System
	if err := app.Container().ResolveAs("actor-system", &sys); err != nil {
		return nil, err
	}
	var timerSvc *timer.Service
	if err := app.Container().ResolveAs("timer-service", &timerSvc); err != nil {
		return nil, err
	}

	return &Process{app: app, sys: sys, timer: timerSvc, log: log}, nil
}

// Finalize stops every service started by Initialize, in reverse
// dependency order.
func (p *Process) Finalize(ctx context.Context) error {
	return p.app.Shutdown(ctx)
}

// Spawn spawns behavior under id on the process's actor system.
func (p *Process) Spawn(id aid.AID, behavior interface{}, opts actorsys.SpawnOptions) (aid.AID, error) {
	return p.sys.Spawn(id, behavior, opts)
}

// Send routes msg through the process's actor system, locally or via
// the registered IOSender.
func (p *Process) Send(msg *aid.Message) actorsys.Status {
	return p.sys.Send(msg)
}

// Terminate enqueues a TERMINATE message for target.
func (p *Process) Terminate(target aid.AID) actorsys.Status {
	return p.sys.Terminate(target)
}

// System returns the underlying actor system for APIs the facade
// doesn't wrap (Receive, Await, Lookup, Deliver).
func (p *Process) System() *actorsys.System { return p.sys }

// Timer returns the underlying timer service.
func (p *Process) Timer() *timer.Service { return p.timer }

// HTTPClient resolves the process's shared httpd.Client, for dialing
// other litebus processes over HTTP/1.1.
func (p *Process) HTTPClient() (*httpd.Client, error) {
	var client *httpd.Client
	if err := p.app.Container().ResolveAs("http-client", &client); err != nil {
		return nil, err
	}
	return client, nil
}

// WireSender resolves the process's shared wire.Sender, the IOSender
// already wired into this Process's System for Send calls addressed to
// a ProtocolTCP AID; exposed for callers that want to frame and send a
// message directly without going through an actor's mailbox.
func (p *Process) WireSender() (*wire.Sender, error) {
	var sender *wire.Sender
	if err := p.app.Container().ResolveAs("wire-sender", &sender); err != nil {
		return nil, err
	}
	return sender, nil
}
