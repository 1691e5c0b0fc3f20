/*
 * Copyright 2025 Olake By Datazip
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package destination

import (
	"context"

	"github.com/datazip-inc/olake-salesforce/types"
)

type Config interface {
	Validate() error
}

// Sink receives the single ordered output of a sync: records and the
// checkpoints that cover them
type Sink interface {
	WriteRecord(ctx context.Context, stream string, record types.Record) error
	WriteState(ctx context.Context, state *types.State) error
}

type Writer interface {
	Sink
	GetConfigRef() Config
	Spec() any
	Type() string
	// Check validates the destination is reachable; called before Setup
	Check(ctx context.Context) error
	// Setup prepares output for every selected stream before the first record
	Setup(ctx context.Context, streams []types.StreamInterface) error
	Close(ctx context.Context) error
}
