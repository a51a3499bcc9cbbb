// ABOUTME: The forwarding worker behind one proxy instance: listener plus ReverseProxy.
// ABOUTME: Per-request forwarding errors are logged and answered with 502, never fatal.
package proxy

import (
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"sync"
)

// instance is one live forwarding worker. The listener is the worker's
// shutdown handle: closing it ends http.Serve.
type instance struct {
	info   Info
	target *url.URL

	closeOnce sync.Once
	ln        net.Listener
	closed    bool
	mu        sync.Mutex
}

// run binds the listener, signals readiness exactly once, and serves until
// the listener closes. onExit fires for unexpected exits so the manager
// can deregister.
func (inst *instance) run(ready chan<- error, onExit func(*instance)) {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", inst.info.Port))
	if err != nil {
		ready <- err
		return
	}
	inst.mu.Lock()
	inst.ln = ln
	inst.mu.Unlock()
	ready <- nil

	rp := httputil.NewSingleHostReverseProxy(inst.target)
	rp.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Printf("proxy id=%s forward error method=%s path=%s target=%s err=%v",
			inst.info.ID, r.Method, r.URL.Path, inst.info.TargetOrigin, err)
		w.WriteHeader(http.StatusBadGateway)
	}

	err = http.Serve(ln, rp)
	inst.mu.Lock()
	intentional := inst.closed
	inst.mu.Unlock()
	if intentional {
		return
	}
	if err != nil && !errors.Is(err, net.ErrClosed) {
		log.Printf("proxy id=%s serve exited: %v", inst.info.ID, err)
	}
	onExit(inst)
}

// close shuts the listener down, which unblocks http.Serve.
func (inst *instance) close() {
	inst.closeOnce.Do(func() {
		inst.mu.Lock()
		inst.closed = true
		ln := inst.ln
		inst.mu.Unlock()
		if ln != nil {
			ln.Close()
		}
	})
}
