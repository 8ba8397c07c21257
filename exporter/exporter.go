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

// Package exporter forwards decoded Target Protocol records to the single
// UI sink the agent is configured with.
package exporter

import (
	"github.com/marienilba/dofuscap/confengine"
	"github.com/marienilba/dofuscap/exporter/sinker/ui"
	"github.com/marienilba/dofuscap/framer"
)

type Exporter struct {
	sink Sinker
}

// New unpacks the "exporter" config child and builds the UI sink it names.
func New(conf *confengine.Config) (*Exporter, error) {
	var cfg Config
	if err := conf.UnpackChild("exporter", &cfg); err != nil {
		return nil, err
	}

	sink, err := ui.New(cfg.UI)
	if err != nil {
		return nil, err
	}
	return &Exporter{sink: sink}, nil
}

// NewWithSinker builds an Exporter around an already-constructed Sinker,
// for embedders that bridge into their own UI event bus instead of a file.
func NewWithSinker(sink Sinker) *Exporter {
	return &Exporter{sink: sink}
}

// Export forwards one drained batch of records to the UI sink.
func (e *Exporter) Export(records []framer.Record) error {
	if len(records) == 0 {
		return nil
	}
	return e.sink.Sink(records)
}

func (e *Exporter) Close() {
	e.sink.Close()
}
