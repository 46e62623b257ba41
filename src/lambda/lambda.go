package lambda

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/seventv/PipelineNotifier/src/event"
	"github.com/seventv/PipelineNotifier/src/global"
	"github.com/seventv/PipelineNotifier/src/task"
)

type Handler func(ctx context.Context, trigger event.Trigger) (string, error)

// NewHandler returns the EventBridge target. A failed delivery is returned as
// an error so the platform's async retry can redeliver the event.
func NewHandler(gCtx global.Context) Handler {
	return func(ctx context.Context, trigger event.Trigger) (string, error) {
		gCtx.AddTask(1)
		defer gCtx.DoneTask()

		t := task.New(task.TransportLambda, gCtx.Instances().Filter, gCtx.Instances().Notifier)

		res, err := t.ProcessTrigger(ctx, trigger)
		if err != nil {
			return "", err
		}

		return res.ResponseBody, nil
	}
}

// Start blocks serving invocations from the Lambda runtime.
func Start(gCtx global.Context) {
	lambda.Start(NewHandler(gCtx))
}
