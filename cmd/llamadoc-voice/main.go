// Package main provides the llamadoc-voice CLI: a voice front end for a
// LlamaDoc document question-answering backend.
//
// Usage:
//
//	llamadoc-voice [flags] <command> [args]
//
// Commands:
//
//	serve     - Run the dashboard (REST API and event stream)
//	upload    - Upload a PDF and print its upload id
//	ask       - Ask a typed question about a document
//	listen    - Ask a spoken question from the microphone
//	history   - List or export a document's history
//	download  - Download the latest answer as txt, pdf or docx
//	settings  - Show or change voice settings
//
// Configuration is read from llamadoc-voice.yaml (see --config), then
// .env, then the environment.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
