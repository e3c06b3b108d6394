package main

import (
	"errors"
	"fmt"
	"os"
)

// Exit codes for different failure modes
const (
	ExitSuccess   = 0 // Command completed
	ExitRunFailed = 1 // The pipeline run ended in the failed state
	ExitError     = 2 // Configuration or runtime error
)

// RunFailedError indicates the command itself executed correctly, but
// the pipeline run it operated on ended failed.
type RunFailedError struct {
	Message string
}

func (e *RunFailedError) Error() string {
	return e.Message
}

func main() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)

		var runFailedErr *RunFailedError
		if errors.As(err, &runFailedErr) {
			os.Exit(ExitRunFailed)
		}

		os.Exit(ExitError)
	}
}
