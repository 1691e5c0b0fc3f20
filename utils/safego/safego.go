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

package safego

import (
	"fmt"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/datazip-inc/olake-salesforce/utils/logger"
)

var startTime time.Time

// Recovery logs a recovered panic with its stack; with exit set it reports
// the run duration and terminates the process when a panic was recovered
func Recovery(exit bool) {
	err := recover()
	if err != nil {
		logger.Error(err)
		for _, str := range strings.Split(string(debug.Stack()), "\n") {
			logger.Error(strings.ReplaceAll(str, "\t", ""))
		}
	}
	if exit {
		logger.Infof("Time of execution %v", time.Since(startTime).String())
		if err != nil {
			os.Exit(1)
		}
	}
}

// Guard runs fn and converts a panic into an error so a single stream cannot
// take the worker pool down
func Guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("panic recovered: %v\n%s", r, debug.Stack())
			err = fmt.Errorf("panic recovered: %v", r)
		}
	}()

	return fn()
}

func init() {
	startTime = time.Now()
}
