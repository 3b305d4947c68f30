// SysManager is a supplemented feature grounded in the original
// http_sysmgr.cpp: a built-in actor that lets an operator bump logging
// verbosity for a bounded duration via POST
// /SysManager/toggle?level=N&duration=MS, then reverts automatically —
// a direct use of the timer service's "deliver a message to an actor
// after a delay" capability.
package httpd

import (
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/najoast/litebus/aid"
	"github.com/najoast/litebus/future"
	"github.com/najoast/litebus/timer"
)

// SysManagerActorName is the well-known actor name this behavior is
// spawned under; the server does not spawn it itself (see NewSysManager).
const SysManagerActorName = "SysManager"

// sysManager implements HTTPActor for the toggle route.
type sysManager struct {
	log   *logrus.Logger
	timer *timer.Service
	self  aid.AID

	original logrus.Level
}

// NewSysManager constructs the SysManager behavior. Callers must Spawn
// it under aid.Local(SysManagerActorName).
func NewSysManager(log *logrus.Logger, timerSvc *timer.Service) *sysManager {
	return &sysManager{log: log, timer: timerSvc, self: aid.Local(SysManagerActorName), original: log.GetLevel()}
}

// ServeActorHTTP implements HTTPActor.
func (m *sysManager) ServeActorHTTP(req Request) future.Future[*Response] {
	p := future.NewPromise[*Response]()
	defer p.Release()

	if req.URL.Path != "/SysManager/toggle" && req.URL.Path != "/toggle" {
		p.SetValue(NewResponse(http.StatusNotFound, nil))
		return p.Future()
	}

	levelStr, durStr := req.URL.Query["level"], req.URL.Query["duration"]
	level, err := strconv.Atoi(levelStr)
	if err != nil {
		p.SetValue(NewResponse(http.StatusBadRequest, []byte("invalid level")))
		return p.Future()
	}
	durationMS, err := strconv.Atoi(durStr)
	if err != nil {
		p.SetValue(NewResponse(http.StatusBadRequest, []byte("invalid duration")))
		return p.Future()
	}

	m.original = m.log.GetLevel()
	m.log.SetLevel(logrus.Level(level))
	m.timer.AddTimer(time.Duration(durationMS)*time.Millisecond, m.self, func(behavior interface{}) {
		behavior.(*sysManager).revert()
	})

	p.SetValue(NewResponse(http.StatusOK, nil))
	return p.Future()
}

func (m *sysManager) revert() {
	m.log.SetLevel(m.original)
}
