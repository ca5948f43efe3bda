/* Copyright 2025 Readsync Authors
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

package cmd

import (
	"github.com/spf13/cobra"
)

var (
	configPathFlag string
	envFileFlag    string
)

var root = &cobra.Command{
	Use:           "readsync-server",
	Short:         "Readsync server - event sync for reading apps",
	SilenceErrors: true,
	SilenceUsage:  true,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
}

func init() {
	root.PersistentFlags().StringVar(&configPathFlag, "config", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&envFileFlag, "envFile", ".env", "path to a .env file loaded before reading the environment")

	root.AddCommand(newStartCmd())
	root.AddCommand(newVersionCmd())
	root.AddCommand(newTokenCmd())
}

// Execute runs the main command
func Execute() error {
	return root.Execute()
}
