// Package probe issues the client side requests of the harness: health checks
// against the well-formed responder and the streaming read of the truncated one.
package probe

import (
	"context"
)

type Service interface {
	Check(ctx context.Context, url string) Result
	Healthy(ctx context.Context, url string) bool
	Stream(ctx context.Context, url string) StreamResult
}
