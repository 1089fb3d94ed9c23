// Package worksource defines the pool-transport contract spec §6's getwork
// protocol requires, and (see source_http.go/source_kcp.go) the two
// transports that satisfy it.
//
// Grounded on client/main.go's dial-and-reconnect loop, generalized from a
// fixed TCP/KCP relay target into a pluggable Source so internal/engine and
// internal/shareproc never see a transport-specific type.
package worksource

import (
	"context"

	"github.com/go-primegap/miner/internal/header"
)

// Source is the external-collaborator boundary spec §4.11 names: fetch the
// current work unit, submit a found one. Implementations own their own
// reconnect/backoff policy; a transient failure is reported as an error,
// not a panic, so the engine can keep mining on its last known header.
type Source interface {
	GetWork(ctx context.Context) (*header.Header, error)
	Submit(ctx context.Context, h *header.Header) (bool, error)
}
