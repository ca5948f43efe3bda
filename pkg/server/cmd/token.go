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
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/readsync/readsync/pkg/server/config"
	"github.com/readsync/readsync/pkg/server/token"
	"github.com/spf13/cobra"
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage bearer tokens",
	}

	cmd.AddCommand(newTokenIssueCmd())

	return cmd
}

func newTokenIssueCmd() *cobra.Command {
	var accountID, secret, alg string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a signed token for an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if accountID == "" {
				return errors.New("--account is required")
			}

			if envFileFlag != "" {
				if err := config.LoadEnv(envFileFlag); err != nil {
					return err
				}
			}
			if secret == "" {
				secret = os.Getenv("JWT_SECRET")
			}
			if secret == "" {
				return config.ErrJWTSecretMissing
			}

			tok, err := token.Issue(token.Options{
				Secret: secret,
				Alg:    alg,
				TTL:    ttl,
			}, accountID, time.Now())
			if err != nil {
				return errors.Wrap(err, "issuing token")
			}

			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&accountID, "account", "", "account id to put in the sub claim")
	f.DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime; 0 issues a token that never expires")
	f.StringVar(&secret, "secret", "", "signing secret (env: JWT_SECRET)")
	f.StringVar(&alg, "alg", "HS256", "signing algorithm: HS256, HS384, or HS512")

	return cmd
}
