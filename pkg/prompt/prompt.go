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

// Package prompt reads answers to interactive questions
package prompt

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// FormatQuestion formats a yes/no question with the appropriate choice indicator
func FormatQuestion(question string, optimistic bool) string {
	if optimistic {
		return fmt.Sprintf("%s (Y/n)", question)
	}

	return fmt.Sprintf("%s (y/N)", question)
}

// ReadLine reads one line from the reader, trimmed of surrounding whitespace.
// A final line without a newline is returned as is.
func ReadLine(r io.Reader) (string, error) {
	input, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !(err == io.EOF && input != "") {
		return "", errors.Wrap(err, "reading input")
	}

	return strings.TrimSpace(input), nil
}

// ReadYesNo reads a yes/no answer. In optimistic mode an empty answer is a yes.
func ReadYesNo(r io.Reader, optimistic bool) (bool, error) {
	input, err := ReadLine(r)
	if err != nil {
		return false, err
	}

	switch strings.ToLower(input) {
	case "y", "yes":
		return true, nil
	case "":
		return optimistic, nil
	}

	return false, nil
}
