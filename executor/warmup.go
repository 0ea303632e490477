package executor

import (
	"context"
	"errors"
	"fmt"
)

var ErrWarmupFailed = errors.New("executor warmup failed")

// warmupProgram touches the compiler, closures, module.exports and the
// timer queue once so a broken runtime shows up at startup.
const warmupProgram = `
const total = [1, 2, 3].reduce((a, b) => a + b, 0);
setTimeout(() => {}, 1);
module.exports = { total };
`

func warmup(ctx context.Context, e *Executor) error {
	result := e.Execute(ctx, warmupProgram)
	if !result.Success {
		return fmt.Errorf("%w: %s", ErrWarmupFailed, result.FirstError("no error reported"))
	}
	return nil
}
