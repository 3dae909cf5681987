package charges

import "context"

type Processor interface {
	Process(ctx context.Context, body []byte) error
}
