/*
Copyright 2023 The CokeDB Authors. All rights reserved.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package server

import (
	"fmt"

	"github.com/BingCoke/CokeDB/pkg/logger"
)

type Options struct {
	Address     string
	Port        int
	MetricsPort int
	Logger      logger.Logger
}

func DefaultOptions() *Options {
	return &Options{
		Address:     "0.0.0.0",
		Port:        4406,
		MetricsPort: 9497,
	}
}

func (o *Options) WithAddress(addr string) *Options {
	o.Address = addr
	return o
}

func (o *Options) WithPort(port int) *Options {
	o.Port = port
	return o
}

// WithMetricsPort sets the Prometheus endpoint port; 0 disables it.
func (o *Options) WithMetricsPort(port int) *Options {
	o.MetricsPort = port
	return o
}

func (o *Options) WithLogger(l logger.Logger) *Options {
	o.Logger = l
	return o
}

func (o *Options) Bind() string {
	return fmt.Sprintf("%s:%d", o.Address, o.Port)
}

func (o *Options) MetricsBind() string {
	return fmt.Sprintf("%s:%d", o.Address, o.MetricsPort)
}
