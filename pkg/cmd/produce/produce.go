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

package produce

import (
	"time"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/firehose"
	"github.com/aws/aws-sdk-go/service/kinesis"
	"github.com/benbjohnson/clock"
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"github.com/pingcap/shardflow/cdc/producer"
	"github.com/pingcap/shardflow/pkg/awsutil"
	"github.com/pingcap/shardflow/pkg/cmd/util"
	"github.com/pingcap/shardflow/pkg/config"
	"github.com/pingcap/shardflow/pkg/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

// options defines flags for the `produce` command.
type options struct {
	configFilePath string
	producerConfig *config.ProducerConfig
}

func newOptions() *options {
	return &options{producerConfig: config.GetDefaultProducerConfig()}
}

func (o *options) addFlags(cmd *cobra.Command) {
	defaultCfg := config.GetDefaultProducerConfig()
	cfg := o.producerConfig
	cmd.Flags().StringVar(&cfg.Region, "region", defaultCfg.Region, "AWS region")
	cmd.Flags().StringVar(&cfg.Endpoint, "endpoint", defaultCfg.Endpoint, "override the Kinesis endpoint, for local testing")
	cmd.Flags().StringVar(&cfg.Target, "target", defaultCfg.Target, "where records are put (streams|firehose)")
	cmd.Flags().StringVar(&cfg.StreamName, "stream-name", defaultCfg.StreamName, "Kinesis stream to put records to")
	cmd.Flags().StringVar(&cfg.DeliveryStreamName, "delivery-stream-name", defaultCfg.DeliveryStreamName, "Firehose delivery stream to put records to")
	cmd.Flags().DurationVar((*time.Duration)(&cfg.RecordInterval), "record-interval", time.Duration(defaultCfg.RecordInterval), "interval between two rounds of records")
	cmd.Flags().IntVar(&cfg.RecordCount, "record-count", defaultCfg.RecordCount, "records put in every round, one per partition key")
	cmd.Flags().BoolVar(&cfg.PinShards, "pin-shards", defaultCfg.PinShards, "spread every round over all shards by explicit hash keys")
	cmd.Flags().StringVar(&cfg.Log.File, "log-file", defaultCfg.Log.File, "log file path")
	cmd.Flags().StringVar(&cfg.Log.Level, "log-level", defaultCfg.Log.Level, "log level (etc: debug|info|warn|error)")
	cmd.Flags().StringVar(&o.configFilePath, "config", "", "Path of the configuration file")
}

func (o *options) run(cmd *cobra.Command) error {
	conf, err := o.loadAndVerifyProducerConfig(cmd)
	if err != nil {
		return errors.Trace(err)
	}

	ctx, cancel := util.InitCmd(cmd, conf.Log)
	defer cancel()
	version.LogVersionInfo("produce")
	util.LogHTTPProxies()

	sess, err := awsutil.NewSession(awsutil.Options{Endpoint: conf.Endpoint, Region: conf.Region})
	if err != nil {
		return errors.Trace(err)
	}
	done := make(chan struct{})
	defer close(done)
	util.InitSignalHandling(func() <-chan struct{} {
		cancel()
		return done
	}, cancel)

	log.Info("start producing records",
		zap.String("target", conf.Target),
		zap.Int("recordCount", conf.RecordCount),
		zap.Duration("recordInterval", time.Duration(conf.RecordInterval)))
	if err := newProducer(conf, sess).Run(ctx); err != nil {
		return errors.Annotate(err, "produce records")
	}
	log.Info("shardflow producer exits successfully")
	return nil
}

func newProducer(conf *config.ProducerConfig, sess *session.Session) *producer.Producer {
	if conf.Target == config.ProducerTargetFirehose {
		return producer.NewFirehoseProducer(firehose.New(sess), conf, clock.New())
	}
	return producer.NewProducer(kinesis.New(sess), conf, clock.New())
}

func (o *options) loadAndVerifyProducerConfig(cmd *cobra.Command) (*config.ProducerConfig, error) {
	conf := config.GetDefaultProducerConfig()
	if len(o.configFilePath) > 0 {
		if err := util.StrictDecodeFile(o.configFilePath, "shardflow producer", conf); err != nil {
			return nil, err
		}
	}
	cfg := o.producerConfig
	cmd.Flags().Visit(func(flag *pflag.Flag) {
		switch flag.Name {
		case "region":
			conf.Region = cfg.Region
		case "endpoint":
			conf.Endpoint = cfg.Endpoint
		case "target":
			conf.Target = cfg.Target
		case "stream-name":
			conf.StreamName = cfg.StreamName
		case "delivery-stream-name":
			conf.DeliveryStreamName = cfg.DeliveryStreamName
		case "record-interval":
			conf.RecordInterval = cfg.RecordInterval
		case "record-count":
			conf.RecordCount = cfg.RecordCount
		case "pin-shards":
			conf.PinShards = cfg.PinShards
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

// NewCmdProduce creates the `produce` command.
func NewCmdProduce() *cobra.Command {
	o := newOptions()

	command := &cobra.Command{
		Use:   "produce",
		Short: "Put sample JSON records to a Kinesis data stream or a Firehose delivery stream",
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd)
		},
	}
	o.addFlags(command)

	return command
}
