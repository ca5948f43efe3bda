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

// Package log prints human readable messages for the readsync command line
package log

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

const debugEnvName = "READSYNC_DEBUG"

var (
	// ColorRed is a red foreground color
	ColorRed = color.New(color.FgRed)
	// ColorGreen is a green foreground color
	ColorGreen = color.New(color.FgGreen)
	// ColorYellow is a yellow foreground color
	ColorYellow = color.New(color.FgYellow)
	// ColorBlue is a blue foreground color
	ColorBlue = color.New(color.FgBlue)
	// ColorGray is a gray foreground color
	ColorGray = color.New(color.FgHiBlack)
)

var indent = "  "

func line(symbol, msg string) {
	fmt.Fprintf(color.Output, "%s%s %s", indent, symbol, msg)
}

// Infof prints information with optional format verbs
func Infof(msg string, v ...interface{}) {
	line(ColorBlue.Sprint("•"), fmt.Sprintf(msg, v...))
}

// Successf prints a success message with optional format verbs
func Successf(msg string, v ...interface{}) {
	line(ColorGreen.Sprint("✔"), fmt.Sprintf(msg, v...))
}

// Warnf prints a warning message with optional format verbs
func Warnf(msg string, v ...interface{}) {
	line(ColorYellow.Sprint("•"), fmt.Sprintf(msg, v...))
}

// Errorf prints an error message with optional format verbs
func Errorf(msg string, v ...interface{}) {
	line(ColorRed.Sprint("⨯"), fmt.Sprintf(msg, v...))
}

// Askf prints a question with optional format verbs
func Askf(msg string, v ...interface{}) {
	fmt.Fprintf(color.Output, "%s%s %s: ", indent, ColorGreen.Sprint("[?]"), fmt.Sprintf(msg, v...))
}

// Ack prints the server's verdict on one uploaded event
func Ack(id, status, reason string) {
	switch status {
	case "accepted":
		Successf("%s accepted\n", id)
	case "duplicate":
		line(ColorGray.Sprint("•"), fmt.Sprintf("%s duplicate\n", id))
	default:
		Errorf("%s %s: %s\n", id, status, reason)
	}
}

// Debug prints to the console if READSYNC_DEBUG is set
func Debug(msg string, v ...interface{}) {
	if os.Getenv(debugEnvName) == "1" {
		fmt.Fprintf(color.Output, "%s %s", ColorGray.Sprint("DEBUG:"), fmt.Sprintf(msg, v...))
	}
}
