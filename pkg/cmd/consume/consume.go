// Copyright 2026 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package consume

import (
	"context"
	"io"
	"net"
	"time"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/aws/aws-sdk-go/service/dynamodbstreams"
	"github.com/aws/aws-sdk-go/service/dynamodbstreams/dynamodbstreamsiface"
	"github.com/aws/aws-sdk-go/service/kinesis"
	"github.com/aws/aws-sdk-go/service/kinesis/kinesisiface"
	"github.com/benbjohnson/clock"
	"github.com/fatih/color"
	"github.com/gin-gonic/gin"
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"github.com/pingcap/shardflow/cdc/checkpoint"
	"github.com/pingcap/shardflow/cdc/coordinator"
	"github.com/pingcap/shardflow/cdc/processor"
	"github.com/pingcap/shardflow/cdc/server"
	sinkdynamodb "github.com/pingcap/shardflow/cdc/sink/dynamodb"
	"github.com/pingcap/shardflow/pkg/awsutil"
	"github.com/pingcap/shardflow/pkg/cmd/util"
	"github.com/pingcap/shardflow/pkg/config"
	"github.com/pingcap/shardflow/pkg/etcd"
	"github.com/pingcap/shardflow/pkg/uuid"
	"github.com/pingcap/shardflow/pkg/version"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// options defines flags for the `consume` command.
type options struct {
	configFilePath string
	consumerConfig *config.ConsumerConfig
}

// newOptions creates new options for the `consume` command.
func newOptions() *options {
	return &options{consumerConfig: config.GetDefaultConsumerConfig()}
}

// addFlags receives a *cobra.Command reference and binds
// flags related to the consumer to it.
func (o *options) addFlags(cmd *cobra.Command) {
	defaultCfg := config.GetDefaultConsumerConfig()
	cfg := o.consumerConfig
	cmd.Flags().StringVar(&cfg.Mode, "mode", defaultCfg.Mode, "consumer mode (display|replicate|store)")
	cmd.Flags().StringVar(&cfg.Region, "region", defaultCfg.Region, "AWS region")
	cmd.Flags().StringVar(&cfg.Endpoint, "endpoint", defaultCfg.Endpoint, "override the AWS service endpoint, for local testing")
	cmd.Flags().StringVar(&cfg.StreamName, "stream-name", defaultCfg.StreamName, "Kinesis stream to read in display and store mode")
	cmd.Flags().StringVar(&cfg.SourceTable, "source-table", defaultCfg.SourceTable, "table whose stream is read in replicate mode")
	cmd.Flags().StringVar(&cfg.DestTable, "dest-table", defaultCfg.DestTable, "destination table of replicate and store mode")
	cmd.Flags().StringVar(&cfg.ShardID, "shard-id", defaultCfg.ShardID, "the shard to consume")
	cmd.Flags().StringVar(&cfg.InitialPosition, "initial-position", defaultCfg.InitialPosition, "where a shard without checkpoint is read from (LATEST|TRIM_HORIZON)")
	cmd.Flags().StringVar(&cfg.ApplicationName, "application-name", defaultCfg.ApplicationName, "name scoping the checkpoints of this application")
	cmd.Flags().StringVar(&cfg.WorkerID, "worker-id", defaultCfg.WorkerID, "worker id, generated as <hostname>:<uuid> if empty")
	cmd.Flags().StringVar(&cfg.StatusAddr, "status-addr", defaultCfg.StatusAddr, "listening address of the status server, empty to disable it")

	cmd.Flags().Uint64Var(&cfg.Processor.RetryCount, "retry-count", defaultCfg.Processor.RetryCount, "attempts made for every record and checkpoint")
	cmd.Flags().DurationVar((*time.Duration)(&cfg.Processor.BackoffInterval), "backoff-interval", time.Duration(defaultCfg.Processor.BackoffInterval), "wait between two attempts, 0 retries right away")
	cmd.Flags().DurationVar((*time.Duration)(&cfg.Processor.CheckpointInterval), "checkpoint-interval", time.Duration(defaultCfg.Processor.CheckpointInterval), "minimal interval between two checkpoints")
	cmd.Flags().BoolVar(&cfg.RecordAge.Enabled, "record-age", defaultCfg.RecordAge.Enabled, "log the creation age of records in display mode")
	cmd.Flags().StringVar(&cfg.RecordAge.TimeField, "time-field", defaultCfg.RecordAge.TimeField, "JSON field holding the record creation time")
	cmd.Flags().StringVar(&cfg.RecordAge.TimeFormat, "time-format", defaultCfg.RecordAge.TimeFormat, "layout of the time field")

	cmd.Flags().StringVar(&cfg.Checkpoint.Backend, "checkpoint-backend", defaultCfg.Checkpoint.Backend, "checkpoint store (etcd|memory)")
	cmd.Flags().StringSliceVar(&cfg.Checkpoint.EtcdEndpoints, "etcd-endpoints", defaultCfg.Checkpoint.EtcdEndpoints, "etcd endpoints of the checkpoint store")

	cmd.Flags().StringVar(&cfg.Log.File, "log-file", defaultCfg.Log.File, "log file path")
	cmd.Flags().StringVar(&cfg.Log.Level, "log-level", defaultCfg.Log.Level, "log level (etc: debug|info|warn|error)")

	cmd.Flags().StringVar(&o.configFilePath, "config", "", "Path of the configuration file")
}

func (o *options) run(cmd *cobra.Command) error {
	conf, err := o.loadAndVerifyConsumerConfig(cmd)
	if err != nil {
		return errors.Trace(err)
	}

	ctx, cancel := util.InitCmd(cmd, conf.Log)
	defer cancel()
	version.LogVersionInfo("consume")
	util.LogHTTPProxies()

	if conf.Checkpoint.Backend == config.CheckpointBackendMemory {
		cmd.Printf(color.HiYellowString("[WARN] checkpoints are kept in memory and lost on exit. " +
			"Use `--checkpoint-backend etcd` to resume from the last checkpoint after a restart.\n"))
	}
	workerID := conf.WorkerID
	if workerID == "" {
		workerID, err = uuid.NewWorkerID(uuid.NewGenerator())
		if err != nil {
			return errors.Trace(err)
		}
	}

	sess, err := awsutil.NewSession(awsutil.Options{Endpoint: conf.Endpoint, Region: conf.Region})
	if err != nil {
		return errors.Trace(err)
	}
	handler, reader, err := newPipeline(ctx, conf, newAWSClients(sess), clock.New())
	if err != nil {
		return errors.Trace(err)
	}
	store, closeStore, err := newCheckpointStore(ctx, conf, workerID)
	if err != nil {
		return errors.Trace(err)
	}
	defer func() {
		if cerr := closeStore(); cerr != nil {
			log.Warn("close checkpoint store failed", zap.Error(cerr))
		}
	}()

	proc := processor.NewShardProcessor(conf.Processor, handler)
	driver := coordinator.NewDriver(conf.ShardID, store, reader, proc,
		time.Duration(conf.Reader.IdleInterval), clock.New())

	var lis net.Listener
	if conf.StatusAddr != "" {
		lis, err = net.Listen("tcp", conf.StatusAddr)
		if err != nil {
			return errors.Annotatef(err, "listen on %s", conf.StatusAddr)
		}
	}
	gin.DefaultWriter = io.Discard
	router := server.NewRouter(workerID, conf.ShardID, proc, newRegistry())

	done := make(chan struct{})
	defer close(done)
	util.InitSignalHandling(func() <-chan struct{} {
		cancel()
		return done
	}, cancel)

	log.Info("start consuming shard",
		zap.String("mode", conf.Mode),
		zap.String("shardID", conf.ShardID),
		zap.String("workerID", workerID))
	if err := runConsumer(ctx, driver, lis, router); err != nil {
		log.Error("consume shard failed", zap.String("error", errors.ErrorStack(err)))
		return errors.Annotate(err, "consume shard")
	}
	log.Info("shardflow consumer exits successfully")
	return nil
}

type runner interface {
	Run(ctx context.Context) error
}

// runConsumer runs the driver and the status server, if any, until the
// driver returns. A failing status server stops the driver.
func runConsumer(ctx context.Context, driver runner, lis net.Listener, router *gin.Engine) error {
	g, gctx := errgroup.WithContext(ctx)
	statusCtx, stopStatus := context.WithCancel(gctx)
	defer stopStatus()
	g.Go(func() error {
		defer stopStatus()
		return driver.Run(gctx)
	})
	if lis != nil {
		g.Go(func() error {
			return server.Serve(statusCtx, lis, router)
		})
	}
	return g.Wait()
}

func newRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	registry.MustRegister(collectors.NewGoCollector(
		collectors.WithGoCollections(collectors.GoRuntimeMemStatsCollection | collectors.GoRuntimeMetricsCollection)))

	processor.InitMetrics(registry)
	etcd.InitMetrics(registry)
	sinkdynamodb.InitMetrics(registry)
	return registry
}

type awsClients struct {
	kinesis  kinesisiface.KinesisAPI
	dynamodb dynamodbiface.DynamoDBAPI
	streams  dynamodbstreamsiface.DynamoDBStreamsAPI
}

func newAWSClients(sess *session.Session) *awsClients {
	return &awsClients{
		kinesis:  kinesis.New(sess),
		dynamodb: dynamodb.New(sess),
		streams:  dynamodbstreams.New(sess),
	}
}

// newPipeline creates the record handler and the shard reader of the mode.
func newPipeline(
	ctx context.Context, conf *config.ConsumerConfig, clients *awsClients, clk clock.Clock,
) (processor.RecordHandler, coordinator.ShardReader, error) {
	switch conf.Mode {
	case config.ModeDisplay:
		reader := coordinator.NewKinesisReader(clients.kinesis,
			conf.StreamName, conf.InitialPosition, conf.Reader.MaxRecords)
		return processor.NewDisplayHandler(conf.RecordAge, clk), reader, nil
	case config.ModeStore:
		reader := coordinator.NewKinesisReader(clients.kinesis,
			conf.StreamName, conf.InitialPosition, conf.Reader.MaxRecords)
		store := sinkdynamodb.NewStore(clients.dynamodb)
		return processor.NewStoreHandler(conf.DestTable, conf.RecordAge.TimeField, store), reader, nil
	case config.ModeReplicate:
		streamARN, err := coordinator.ResolveStreamARN(ctx, clients.dynamodb, conf.SourceTable)
		if err != nil {
			return nil, nil, errors.Trace(err)
		}
		log.Info("resolved stream of source table",
			zap.String("table", conf.SourceTable), zap.String("streamARN", streamARN))
		reader := coordinator.NewStreamsReader(clients.streams,
			streamARN, conf.InitialPosition, conf.Reader.MaxRecords)
		store := sinkdynamodb.NewStore(clients.dynamodb)
		handler, err := processor.NewReplicationHandler(ctx, conf.DestTable, store, store)
		if err != nil {
			return nil, nil, errors.Trace(err)
		}
		return handler, reader, nil
	}
	return nil, nil, errors.Errorf("unknown mode %s", conf.Mode)
}

// newCheckpointStore creates the checkpoint store of the configured backend
// and the function releasing it.
func newCheckpointStore(
	ctx context.Context, conf *config.ConsumerConfig, workerID string,
) (checkpoint.Store, func() error, error) {
	if conf.Checkpoint.Backend == config.CheckpointBackendMemory {
		store := checkpoint.NewMemoryStore(workerID)
		return store, store.Close, nil
	}
	client, err := etcd.NewClient(conf.Checkpoint.EtcdEndpoints,
		time.Duration(conf.Checkpoint.RequestTimeout))
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	store, err := checkpoint.NewEtcdStore(ctx, client,
		conf.ApplicationName, workerID, conf.Checkpoint.SessionTTL)
	if err != nil {
		return nil, nil, multierr.Append(errors.Trace(err), client.Close())
	}
	return store, func() error {
		return multierr.Combine(store.Close(), client.Close())
	}, nil
}

func (o *options) loadAndVerifyConsumerConfig(cmd *cobra.Command) (*config.ConsumerConfig, error) {
	conf := config.GetDefaultConsumerConfig()
	if len(o.configFilePath) > 0 {
		if err := util.StrictDecodeFile(o.configFilePath, "shardflow consumer", conf); err != nil {
			return nil, err
		}
	}
	cfg := o.consumerConfig
	cmd.Flags().Visit(func(flag *pflag.Flag) {
		switch flag.Name {
		case "mode":
			conf.Mode = cfg.Mode
		case "region":
			conf.Region = cfg.Region
		case "endpoint":
			conf.Endpoint = cfg.Endpoint
		case "stream-name":
			conf.StreamName = cfg.StreamName
		case "source-table":
			conf.SourceTable = cfg.SourceTable
		case "dest-table":
			conf.DestTable = cfg.DestTable
		case "shard-id":
			conf.ShardID = cfg.ShardID
		case "initial-position":
			conf.InitialPosition = cfg.InitialPosition
		case "application-name":
			conf.ApplicationName = cfg.ApplicationName
		case "worker-id":
			conf.WorkerID = cfg.WorkerID
		case "status-addr":
			conf.StatusAddr = cfg.StatusAddr
		case "retry-count":
			conf.Processor.RetryCount = cfg.Processor.RetryCount
		case "backoff-interval":
			conf.Processor.BackoffInterval = cfg.Processor.BackoffInterval
		case "checkpoint-interval":
			conf.Processor.CheckpointInterval = cfg.Processor.CheckpointInterval
		case "record-age":
			conf.RecordAge.Enabled = cfg.RecordAge.Enabled
		case "time-field":
			conf.RecordAge.TimeField = cfg.RecordAge.TimeField
		case "time-format":
			conf.RecordAge.TimeFormat = cfg.RecordAge.TimeFormat
		case "checkpoint-backend":
			conf.Checkpoint.Backend = cfg.Checkpoint.Backend
		case "etcd-endpoints":
			conf.Checkpoint.EtcdEndpoints = cfg.Checkpoint.EtcdEndpoints
		case "log-file":
			conf.Log.File = cfg.Log.File
		case "log-level":
			conf.Log.Level = cfg.Log.Level
		case "config":
			// do nothing
		default:
			log.Panic("unknown flag, please report a bug", zap.String("flagName", flag.Name))
		}
	})
	if err := conf.ValidateAndAdjust(); err != nil {
		return nil, errors.Trace(err)
	}
	return conf, nil
}

// NewCmdConsume creates the `consume` command.
func NewCmdConsume() *cobra.Command {
	o := newOptions()

	command := &cobra.Command{
		Use:   "consume",
		Short: "Consume one shard of a Kinesis stream or a DynamoDB table stream",
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd)
		},
	}
	o.addFlags(command)

	return command
}
