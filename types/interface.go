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

package types

type StreamInterface interface {
	ID() string
	Self() *ConfiguredStream
	Name() string
	GetStream() *Stream
	Mode() ExtractionMode
	Cursor() string
	SupportsDeleted() bool
	Fields() []*Field
	SelectedFields() []*Field
	FieldType(name string) (FieldType, bool)
	Validate(source *Stream) error
}

type StateInterface interface {
	GetBookmark(streamID string) (Bookmark, bool)
	SetBookmark(streamID string, bookmark Bookmark)
	Snapshot() *State
}

// Iterable is a lazy, non-restartable sequence
type Iterable interface {
	Next() bool
	Err() error
}
