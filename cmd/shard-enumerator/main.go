package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"

	shardcli "github.com/usedatabrew/streamshard/internal/cli"
	"github.com/usedatabrew/streamshard/internal/config"
	"github.com/usedatabrew/streamshard/internal/logging"
	"github.com/usedatabrew/streamshard/internal/metrics"
	"github.com/usedatabrew/streamshard/internal/source/assigner"
	"github.com/usedatabrew/streamshard/internal/source/checkpoint"
	"github.com/usedatabrew/streamshard/internal/source/enumerator"
	"github.com/usedatabrew/streamshard/internal/source/proxy"
	"github.com/usedatabrew/streamshard/internal/source/serde"
)

func main() {
	app := &cli.App{
		Name:  "shard-enumerator",
		Usage: "run the shard enumerator against a Kinesis or DynamoDB Streams ARN",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Aliases:  []string{"c"},
				Usage:    "path to a YAML configuration file",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "assigner",
				Value: "uniform",
				Usage: "split assignment policy, one of: uniform, sticky",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log := logging.New(os.Stdout, cfg.LogLevel)

	sess, err := session.NewSession()
	if err != nil {
		return fmt.Errorf("creating aws session: %w", err)
	}

	sp, err := proxyFor(cfg.StreamARN, sess)
	if err != nil {
		return err
	}

	store, err := storeFor(cfg, sess)
	if err != nil {
		return err
	}

	pol, err := assignerFor(c.String("assigner"))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	var prior *serde.EnumeratorState
	data, version, found, err := store.Load(ctx, cfg.StreamARN, cfg.EnumeratorID)
	if err != nil {
		return fmt.Errorf("loading checkpoint: %w", err)
	}
	if found {
		state, err := serde.DeserializeEnumeratorState(data, version)
		if err != nil {
			return fmt.Errorf("deserializing checkpoint: %w", err)
		}
		prior = &state
		log.Infof("restored enumerator state with %d split(s) from checkpoint", len(state.Splits))
	}

	subtask := shardcli.NewLoggingSubtaskContext(cfg.Parallelism, log)
	exec := enumerator.NewSerialExecutor()
	defer exec.Close()

	rec := metrics.NewRecorder(prometheus.DefaultRegisterer, cfg.StreamARN)

	e := enumerator.New(enumerator.Config{
		StreamARN:               cfg.StreamARN,
		InitialPosition:         cfg.InitialPosition,
		AtTimestamp:             cfg.InitialTimestamp,
		ShardDiscoveryInterval:  cfg.ShardDiscoveryInterval,
		InconsistencyRetryCount: cfg.InconsistencyRetryCount,
		SplitRetention:          cfg.SplitRetention,
		Parallelism:             cfg.Parallelism,
	}, sp, pol, subtask, exec, log, rec, prior)

	log.WithField("instance_id", e.InstanceID()).Infof("starting enumerator for %s", cfg.StreamARN)
	e.Start(ctx)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Infof("shutting down, taking final checkpoint")
	e.Close()

	state := e.SnapshotState(0)
	out, err := serde.SerializeEnumeratorState(state, serde.CurrentVersion)
	if err != nil {
		return fmt.Errorf("serializing final checkpoint: %w", err)
	}
	if err := store.Save(context.Background(), cfg.StreamARN, cfg.EnumeratorID, out, serde.CurrentVersion); err != nil {
		return fmt.Errorf("saving final checkpoint: %w", err)
	}
	return nil
}

func proxyFor(streamARN string, sess *session.Session) (proxy.StreamProxy, error) {
	switch {
	case strings.Contains(streamARN, ":kinesis:"):
		return proxy.NewKinesisProxy(sess), nil
	case strings.Contains(streamARN, ":dynamodb:"):
		return proxy.NewDynamoDBStreamsProxy(sess), nil
	default:
		return nil, fmt.Errorf("cannot determine stream backend from arn %q: expected a kinesis or dynamodb ARN", streamARN)
	}
}

func storeFor(cfg config.Config, sess *session.Session) (checkpoint.EnumeratorStateStore, error) {
	switch cfg.CheckpointBackend {
	case "memory":
		return checkpoint.NewMemoryStore(), nil
	case "dynamodb":
		return checkpoint.NewDynamoDBStore(sess, cfg.CheckpointTable), nil
	default:
		return nil, fmt.Errorf("unknown checkpoint backend %q", cfg.CheckpointBackend)
	}
}

func assignerFor(name string) (assigner.Assigner, error) {
	switch name {
	case "uniform":
		return assigner.Uniform{}, nil
	case "sticky":
		return assigner.NewSticky(), nil
	default:
		return nil, fmt.Errorf("unknown assigner %q: expected uniform or sticky", name)
	}
}
