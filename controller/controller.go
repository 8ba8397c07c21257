// Copyright 2025 The packetd Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package controller is the Wiring module: it owns the capture → flow
// table → exporter loop and the admin/metrics HTTP surface around it.
package controller

import (
	"context"
	"io"
	"time"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"

	"github.com/marienilba/dofuscap/capture"
	"github.com/marienilba/dofuscap/common"
	"github.com/marienilba/dofuscap/common/socket"
	"github.com/marienilba/dofuscap/confengine"
	"github.com/marienilba/dofuscap/exporter"
	"github.com/marienilba/dofuscap/framer"
	"github.com/marienilba/dofuscap/internal/pubsub"
	"github.com/marienilba/dofuscap/internal/rescue"
	"github.com/marienilba/dofuscap/logger"
	"github.com/marienilba/dofuscap/queue"
	"github.com/marienilba/dofuscap/schema"
	"github.com/marienilba/dofuscap/server"
	"github.com/marienilba/dofuscap/sniffer"
)

type Controller struct {
	ctx       context.Context
	cancel    context.CancelFunc
	cfg       Config
	buildInfo common.BuildInfo

	snif  sniffer.Sniffer
	flows *capture.FlowTable
	dq    *queue.Queue
	exp   *exporter.Exporter
	svr   *server.Server
	rtBus *pubsub.PubSub
}

func setupLogger(conf *confengine.Config) error {
	var opts logger.Options
	if err := conf.UnpackChild("logger", &opts); err != nil {
		return err
	}

	if opts.Filename == "" {
		opts.Filename = "dofuscap.log"
	}
	if opts.MaxBackups <= 0 {
		opts.MaxBackups = 10
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = 7
	}
	if opts.MaxSize <= 0 {
		opts.MaxSize = 100
	}

	logger.SetOptions(opts)
	return nil
}

// New wires up every collaborator named in the config: logger, schema
// catalog, capture driver, flow table, exporter, and the admin server.
func New(conf *confengine.Config, buildInfo common.BuildInfo) (*Controller, error) {
	if err := setupLogger(conf); err != nil {
		return nil, err
	}

	var cfg Config
	if err := conf.UnpackChild("controller", &cfg); err != nil {
		return nil, err
	}

	cat, err := schema.Load(cfg.SchemaPath)
	if err != nil {
		return nil, errors.Wrap(err, "load schema catalog")
	}

	snif, err := sniffer.New(conf)
	if err != nil {
		return nil, err
	}

	exp, err := exporter.New(conf)
	if err != nil {
		return nil, err
	}

	svr, err := server.New(conf)
	if err != nil {
		return nil, err
	}

	dq := queue.New()
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		ctx:       ctx,
		cancel:    cancel,
		cfg:       cfg,
		buildInfo: buildInfo,
		snif:      snif,
		flows:     capture.NewFlowTable(cat, dq, cfg.GetFlowExpired()),
		dq:        dq,
		exp:       exp,
		svr:       svr,
		rtBus:     pubsub.New(),
	}, nil
}

func (c *Controller) Start() error {
	c.setupServer()

	go c.loopDrain()
	go c.loopExpireFlows()

	if c.svr != nil {
		go func() {
			defer rescue.HandleCrash()
			err := c.svr.ListenAndServe()
			if !errors.Is(err, io.EOF) {
				logger.Errorf("failed to start server: %v", err)
			}
		}()
	}

	c.snif.SetOnL4Packet(func(seg *socket.TCPSegment) {
		defer rescue.HandleCrash()
		c.flows.Feed(seg)
	})

	return nil
}

// loopDrain periodically drains DecodedQueue, forwarding the batch to the
// UI sink and broadcasting it to any /watch subscribers.
func (c *Controller) loopDrain() {
	defer rescue.HandleCrash()

	ticker := time.NewTicker(c.cfg.GetDrainInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.drainOnce()

		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Controller) drainOnce() {
	queueDepth.Set(float64(c.dq.Len()))

	items := c.dq.Drain()
	if len(items) == 0 {
		return
	}

	records := make([]framer.Record, 0, len(items))
	for _, item := range items {
		if rec, ok := item.(framer.Record); ok {
			records = append(records, rec)
		}
	}
	messagesDecoded.Add(float64(len(records)))

	if err := c.exp.Export(records); err != nil {
		logger.Errorf("failed to export records: %v", err)
	}

	if b, err := json.Marshal(records); err != nil {
		logger.Errorf("failed to marshal records for /watch: %v", err)
	} else {
		c.rtBus.Publish(b)
	}
}

func (c *Controller) loopExpireFlows() {
	defer rescue.HandleCrash()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.flows.RemoveExpired()

		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Controller) recordMetrics() {
	uptime.Set(float64(time.Now().Unix() - common.Started()))
	buildInfo.WithLabelValues(c.buildInfo.Version, c.buildInfo.GitHash, c.buildInfo.Time).Inc()
	activeFlows.Set(float64(c.flows.Count()))
}

// Reload 重载配置
//
// - 重载 sniffer，仅支持重新编译 BPF 过滤规则
func (c *Controller) Reload(conf *confengine.Config) error {
	var cfg sniffer.Config
	if err := conf.UnpackChild("sniffer", &cfg); err != nil {
		return err
	}
	return c.snif.Reload(&cfg)
}

func (c *Controller) Stop() {
	c.snif.Close() // stop feeding the flow table
	c.cancel()     // stop the periodic drain/expiry loops
	c.drainOnce()  // flush whatever was still buffered
	c.flows.Close()
	c.dq.Close()
	c.exp.Close()
}
