package main

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/bugsnag/panicwrap"

	"github.com/seventv/PipelineNotifier/src/aws"
	"github.com/seventv/PipelineNotifier/src/configure"
	"github.com/seventv/PipelineNotifier/src/filter"
	"github.com/seventv/PipelineNotifier/src/global"
	"github.com/seventv/PipelineNotifier/src/lambda"
	"github.com/seventv/PipelineNotifier/src/metrics"
	"github.com/seventv/PipelineNotifier/src/nats"
	"github.com/seventv/PipelineNotifier/src/notify"
	"github.com/seventv/PipelineNotifier/src/rmq"
	"github.com/seventv/PipelineNotifier/src/task"
	"github.com/sirupsen/logrus"
)

var (
	Version = "development"
	Unix    = ""
	Time    = "unknown"
	User    = "unknown"
)

func init() {
	if i, err := strconv.Atoi(Unix); err == nil {
		Time = time.Unix(int64(i), 0).Format(time.RFC3339)
	}
}

func main() {
	config := configure.New()

	// the lambda runtime owns the process, panicwrap would fork away from it
	if !config.Lambda {
		exitStatus, err := panicwrap.BasicWrap(func(s string) {
			logrus.Error(s)
		})
		if err != nil {
			logrus.Error("failed to setup panic handler: ", err)
			os.Exit(2)
		}

		if exitStatus >= 0 {
			os.Exit(exitStatus)
		}
	}

	if !config.NoHeader {
		logrus.Info("Pipeline Notifier")
		logrus.Infof("Version: %s", Version)
		logrus.Infof("build.Time: %s", Time)
		logrus.Infof("build.User: %s", User)
	}

	logrus.Debug("MaxProcs: ", runtime.GOMAXPROCS(0))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	c, cancel := context.WithCancel(context.Background())

	ctx := global.New(c, config)

	if config.Webhook.SsmParameter != "" {
		ctx.Instances().AwsSsm = aws.NewSsm(ctx)

		lCtx, lCancel := context.WithTimeout(ctx, 10*time.Second)
		url, err := ctx.Instances().AwsSsm.GetParameter(lCtx, config.Webhook.SsmParameter, true)
		lCancel()
		if err != nil {
			logrus.Fatal("failed to load webhook url: ", err)
		}

		configure.AddSecret(url)
		config.Webhook.URL = url
	}

	ctx.Instances().Filter = filter.New(config.Filter.Sources, config.Filter.DetailTypes, config.Filter.States)
	ctx.Instances().Notifier = notify.New(notify.Config{
		URL:          config.Webhook.URL,
		Timeout:      config.Webhook.Timeout,
		StrictStatus: config.Webhook.StrictStatus,
		UserAgent:    config.Webhook.UserAgent,
	})

	if config.Simulate != "" {
		results, err := task.Simulate(ctx, task.FailStage(config.Simulate), time.Now)
		for _, r := range results {
			logrus.WithField("outcome", r.Outcome).Info(r.Message)
		}
		cancel()
		if err != nil {
			logrus.Fatal("simulation failed: ", err)
		}
		os.Exit(0)
	}

	if config.Lambda {
		lambda.Start(ctx)
		cancel()
		return
	}

	if config.Metrics.Bind != "" {
		go metrics.Serve(ctx, config.Metrics.Bind)
	}

	if config.Rmq.ServerURL != "" {
		ctx.Instances().Rmq = rmq.New(ctx)
	}
	if config.Nats.URL != "" {
		ctx.Instances().Nats = nats.New(ctx)
	}

	listening := make(chan struct{})
	go func() {
		task.Listen(ctx)
		close(listening)
	}()

	logrus.Info("running")

	done := make(chan struct{})
	go func() {
		select {
		case <-sig:
		case <-listening:
			logrus.Error("every transport stopped")
		}
		cancel()
		go func() {
			<-sig
			logrus.Fatal("force shutdown")
		}()

		// no task is added once the listener has returned
		<-listening

		logrus.Infof("shutting down, %d notifications in flight", ctx.InFlight())

		if !ctx.WaitTimeout(time.Minute) {
			logrus.Warnf("gave up on %d notifications", ctx.InFlight())
		}

		if ctx.Instances().Rmq != nil {
			ctx.Instances().Rmq.Shutdown()
		}
		if ctx.Instances().Nats != nil {
			ctx.Instances().Nats.Shutdown()
		}

		close(done)
	}()

	<-done

	logrus.Info("shutdown")
	os.Exit(0)
}
