package fault

import (
	"context"
)

type Service interface {
	Start(ctx context.Context) (*Report, error)
}
