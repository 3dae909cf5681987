package reconciler

import "context"

type Reconciler interface {
	Run(ctx context.Context) error
}
