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

// Package schema loads and indexes the Target Protocol's JSON type catalog:
// message-id to message-spec, type-name to type-spec, and type-id to
// type-spec for polymorphic "ID" field resolution.
package schema

import (
	"os"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
)

// ErrCyclicType is returned by Load/LoadBytes when a type's parent chain
// cycles back on itself.
var ErrCyclicType = errors.New("schema: cyclic parent chain")

// BoolVar is a single bit-packed boolean field.
type BoolVar struct {
	Name string `json:"name"`
}

// FieldSpec describes one regular (non bit-packed) field of a TypeSpec.
type FieldSpec struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Length   any    `json:"length"`
	Optional bool   `json:"optional"`
}

// TypeSpec describes one user-defined type, and doubles as a MessageSpec
// for entries reachable from MsgByID.
type TypeSpec struct {
	Name     string      `json:"name"`
	Parent   *string     `json:"parent"`
	BoolVars []BoolVar   `json:"bool_vars"`
	Vars     []FieldSpec `json:"vars"`
}

type rawCatalog struct {
	MsgFromID   map[string]TypeSpec `json:"msg_from_id"`
	TypesFromID map[string]TypeSpec `json:"types_from_id"`
	Types       map[string]TypeSpec `json:"types"`
}

// Catalog is the immutable, load-once index of a schema file. It is safe
// for concurrent reads by any number of deserializers.
type Catalog struct {
	msgByID     map[uint16]TypeSpec
	typesByID   map[uint16]TypeSpec
	typesByName map[string]TypeSpec
}

// Load reads and indexes the schema file at path.
func Load(path string) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "schema: read %s", path)
	}
	return LoadBytes(b)
}

// LoadBytes indexes a schema document already in memory.
func LoadBytes(b []byte) (*Catalog, error) {
	var raw rawCatalog
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, errors.Wrap(err, "schema: decode catalog")
	}

	cat := &Catalog{
		msgByID:     make(map[uint16]TypeSpec, len(raw.MsgFromID)),
		typesByID:   make(map[uint16]TypeSpec, len(raw.TypesFromID)),
		typesByName: make(map[string]TypeSpec, len(raw.Types)),
	}

	for k, v := range raw.MsgFromID {
		id, err := strconv.ParseUint(k, 10, 16)
		if err != nil {
			return nil, errors.Wrapf(err, "schema: msg_from_id key %q", k)
		}
		cat.msgByID[uint16(id)] = v
	}
	for k, v := range raw.TypesFromID {
		id, err := strconv.ParseUint(k, 10, 16)
		if err != nil {
			return nil, errors.Wrapf(err, "schema: types_from_id key %q", k)
		}
		cat.typesByID[uint16(id)] = v
	}
	for k, v := range raw.Types {
		cat.typesByName[k] = v
	}

	// names referenced only via msg_from_id/types_from_id must still be
	// resolvable by name for parent-chain recursion.
	for _, v := range cat.msgByID {
		if _, ok := cat.typesByName[v.Name]; !ok {
			cat.typesByName[v.Name] = v
		}
	}
	for _, v := range cat.typesByID {
		if _, ok := cat.typesByName[v.Name]; !ok {
			cat.typesByName[v.Name] = v
		}
	}

	if err := cat.validateAcyclic(); err != nil {
		return nil, err
	}
	return cat, nil
}

func (c *Catalog) validateAcyclic() error {
	for name := range c.typesByName {
		seen := map[string]bool{}
		cur := name
		for {
			spec, ok := c.typesByName[cur]
			if !ok || spec.Parent == nil {
				break
			}
			if seen[cur] {
				return errors.Wrapf(ErrCyclicType, "type %q", name)
			}
			seen[cur] = true
			cur = *spec.Parent
		}
	}
	return nil
}

// MessageByID looks up a top-level message spec by its on-the-wire id.
func (c *Catalog) MessageByID(id uint16) (TypeSpec, bool) {
	t, ok := c.msgByID[id]
	return t, ok
}

// TypeByName looks up a user-defined type by name; this also serves parent
// chain and message-spec lookups since both index into typesByName.
func (c *Catalog) TypeByName(name string) (TypeSpec, bool) {
	t, ok := c.typesByName[name]
	return t, ok
}

// TypeByID resolves a polymorphic "ID"-typed field's wire id to a type spec.
func (c *Catalog) TypeByID(id uint16) (TypeSpec, bool) {
	t, ok := c.typesByID[id]
	return t, ok
}
