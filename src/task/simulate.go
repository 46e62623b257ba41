package task

import (
	"context"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/seventv/PipelineNotifier/src/configure"
	"github.com/seventv/PipelineNotifier/src/event"
	"github.com/seventv/PipelineNotifier/src/global"
	"github.com/seventv/PipelineNotifier/src/pipeline"
	"github.com/sirupsen/logrus"
)

// Simulate walks one run of the configured pipeline and sends every
// transition through the notifier. failStage names the stage that fails, an
// empty name lets the run succeed.
func Simulate(ctx global.Context, failStage string, now func() time.Time) ([]Result, error) {
	run, err := pipeline.NewRun(ctx.Config().Pipeline, now)
	if err != nil {
		return nil, err
	}

	logrus.WithField("run", run.ID()).Infof("simulating run of %s", run.Pipeline().Name)

	var (
		results []Result
		errs    error
	)

	handle := func(evt event.StageExecutionEvent) {
		lCtx, cancel := context.WithTimeout(ctx, time.Second*time.Duration(ctx.Config().MaxTaskDuration))
		defer cancel()

		res, err := New(TransportLocal, ctx.Instances().Filter, ctx.Instances().Notifier).Handle(lCtx, evt)
		results = append(results, res)
		errs = multierror.Append(errs, err).ErrorOrNil()
	}

	for {
		stage, ok := run.Next()
		if !ok {
			break
		}

		evt, err := run.Start(stage.Name)
		if err != nil {
			return results, multierror.Append(errs, err)
		}
		handle(evt)

		if stage.Name == failStage {
			evt, err = run.Fail(stage.Name)
		} else {
			evt, err = run.Succeed(stage.Name)
		}
		if err != nil {
			return results, multierror.Append(errs, err)
		}
		handle(evt)
	}

	return results, errs
}

// FailStage extracts the failing stage from a simulate flag value.
func FailStage(simulate string) string {
	if simulate == configure.SimulateSucceeded {
		return ""
	}
	return strings.TrimPrefix(simulate, configure.SimulateFailedStage)
}
