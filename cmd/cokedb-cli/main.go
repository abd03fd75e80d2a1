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

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/BingCoke/CokeDB/pkg/client"
)

func main() {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "cokedb-cli",
		Short: "Interactive CokeDB shell",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.Dial(fmt.Sprintf("%s:%d", host, port))
			if err != nil {
				return err
			}
			defer c.Close()

			return runRepl(c)
		},
		SilenceUsage: true,
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "server host")
	cmd.Flags().IntVar(&port, "port", 4406, "server port")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
