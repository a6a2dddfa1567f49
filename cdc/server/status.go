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

package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"github.com/pingcap/shardflow/cdc/processor"
	cerror "github.com/pingcap/shardflow/pkg/errors"
	"github.com/pingcap/shardflow/pkg/logutil"
	"github.com/pingcap/shardflow/pkg/version"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"
)

const (
	maxHTTPConnection     = 100
	httpConnectionTimeout = 10 * time.Second
)

// ShardState exposes the progress of the shard being consumed.
type ShardState interface {
	State() processor.State
	Position() string
}

// Status holds some common information of a consumer.
type Status struct {
	Version  string `json:"version"`
	GitHash  string `json:"git_hash"`
	ID       string `json:"id"`
	ShardID  string `json:"shard_id"`
	State    string `json:"state"`
	Position string `json:"position"`
	Pid      int    `json:"pid"`
}

// HTTPError of the status API.
type HTTPError struct {
	Error string `json:"error_msg"`
	Code  string `json:"error_code"`
}

func newHTTPError(err error) HTTPError {
	code := ""
	if e, ok := err.(*errors.Error); ok {
		code = string(e.RFCCode())
	}
	return HTTPError{Error: err.Error(), Code: code}
}

type statusHandler struct {
	workerID string
	shardID  string
	shard    ShardState
}

// NewRouter creates the router of the status server.
func NewRouter(workerID, shardID string, shard ShardState, registry prometheus.Gatherer) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	h := &statusHandler{workerID: workerID, shardID: shardID, shard: shard}
	router.GET("/status", h.serverStatus)
	router.GET("/health", h.health)
	router.POST("/admin/log", handleAdminLogLevel)

	pprofGroup := router.Group("/debug/pprof/")
	pprofGroup.GET("", gin.WrapF(pprof.Index))
	pprofGroup.GET("/:any", gin.WrapF(pprof.Index))
	pprofGroup.GET("/cmdline", gin.WrapF(pprof.Cmdline))
	pprofGroup.GET("/profile", gin.WrapF(pprof.Profile))
	pprofGroup.GET("/symbol", gin.WrapF(pprof.Symbol))
	pprofGroup.GET("/trace", gin.WrapF(pprof.Trace))

	router.Any("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	return router
}

func (h *statusHandler) serverStatus(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, Status{
		Version:  version.ReleaseVersion,
		GitHash:  version.GitHash,
		ID:       h.workerID,
		ShardID:  h.shardID,
		State:    h.shard.State().String(),
		Position: h.shard.Position(),
		Pid:      os.Getpid(),
	})
}

// health fails once the shard processor has stopped.
func (h *statusHandler) health(c *gin.Context) {
	state := h.shard.State()
	if state.IsTerminal() {
		c.IndentedJSON(http.StatusServiceUnavailable, HTTPError{
			Error: "shard processor is " + state.String(),
		})
		return
	}
	c.Status(http.StatusOK)
}

// handleAdminLogLevel changes the log level, the body is a JSON string
// such as "debug".
func handleAdminLogLevel(c *gin.Context) {
	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.IndentedJSON(http.StatusInternalServerError, newHTTPError(err))
		return
	}
	var level string
	if err := json.Unmarshal(data, &level); err != nil {
		c.IndentedJSON(http.StatusBadRequest,
			newHTTPError(cerror.ErrAPIInvalidParam.GenWithStack("invalid log level: %s", err)))
		return
	}
	if err := logutil.SetLogLevel(level); err != nil {
		c.IndentedJSON(http.StatusBadRequest,
			newHTTPError(cerror.ErrAPIInvalidParam.GenWithStack("fail to change log level: %s", err)))
		return
	}
	log.Warn("log level changed", zap.String("level", level))
	c.IndentedJSON(http.StatusOK, struct{}{})
}

// Serve serves handler on lis until ctx is done.
func Serve(ctx context.Context, lis net.Listener, handler http.Handler) error {
	// LimitListener accepts at most maxHTTPConnection simultaneous connections.
	lis = netutil.LimitListener(lis, maxHTTPConnection)
	srv := &http.Server{
		Handler:      handler,
		ReadTimeout:  httpConnectionTimeout,
		WriteTimeout: httpConnectionTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("status server is running", zap.Stringer("addr", lis.Addr()))
		err := srv.Serve(lis)
		if err != nil && err != http.ErrServerClosed {
			return cerror.WrapError(cerror.ErrServeHTTP, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), httpConnectionTimeout)
		defer cancel()
		return errors.Trace(srv.Shutdown(shutdownCtx))
	})
	return g.Wait()
}
