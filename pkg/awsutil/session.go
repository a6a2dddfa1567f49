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

package awsutil

import (
	"net/url"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/pingcap/errors"
	cerror "github.com/pingcap/shardflow/pkg/errors"
)

// number of retries the SDK makes for a single request
const maxRetries = 3

// Options contains options for the AWS clients
type Options struct {
	Endpoint string `json:"endpoint" toml:"endpoint"`
	Region   string `json:"region" toml:"region"`
}

func (options *Options) adjust() error {
	if len(options.Region) == 0 {
		options.Region = "ap-northeast-1"
	}
	if len(options.Endpoint) != 0 {
		u, err := url.Parse(options.Endpoint)
		if err != nil {
			return cerror.WrapError(cerror.ErrInvalidConfig, err, "endpoint "+options.Endpoint)
		}
		if len(u.Scheme) == 0 {
			return cerror.ErrInvalidConfig.GenWithStackByArgs("scheme not found in endpoint")
		}
		if len(u.Host) == 0 {
			return cerror.ErrInvalidConfig.GenWithStackByArgs("host not found in endpoint")
		}
	}
	return nil
}

func (options *Options) apply() *aws.Config {
	awsConfig := aws.NewConfig().
		WithMaxRetries(maxRetries).
		WithRegion(options.Region)
	if len(options.Endpoint) != 0 {
		awsConfig.WithEndpoint(options.Endpoint)
	}
	return awsConfig
}

// NewSession creates a session sharing its configuration between the
// Kinesis, DynamoDB and DynamoDB Streams clients. Credentials come from the
// default provider chain.
func NewSession(options Options) (*session.Session, error) {
	if err := options.adjust(); err != nil {
		return nil, err
	}
	sess, err := session.NewSessionWithOptions(session.Options{
		Config:            *options.apply(),
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return sess, nil
}
