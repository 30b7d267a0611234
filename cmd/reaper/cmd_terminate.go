package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/yairfalse/reaper/internal/terminator"
	"github.com/yairfalse/reaper/pkg/instance"
)

var errNoneTerminated = errors.New("no instance was terminated")

var (
	terminateInstanceID  string
	terminateInstanceIDs []string
	terminateEvent       string
)

// terminateCmd runs a single invocation from the command line
var terminateCmd = &cobra.Command{
	Use:   "terminate",
	Short: "Terminate instances once and print the report",
	Long: `Run one invocation locally and print the response as JSON.

Instance IDs come from --instance-id, --instance-ids, an event file
(--event, "-" for stdin) or, when none are given, INSTANCE_IDS.

Exit status is 0 when at least one instance was terminated.`,
	Example: `  reaper terminate --instance-id i-0abc123
  reaper terminate --instance-ids i-1,i-2,i-3
  echo '{"instance_ids":["i-1"]}' | reaper terminate --event -
  INSTANCE_IDS="i-1, i-2" reaper terminate`,
	RunE: runTerminate,
}

func init() {
	rootCmd.AddCommand(terminateCmd)

	terminateCmd.Flags().StringVar(&terminateInstanceID, "instance-id", "", "Single instance ID")
	terminateCmd.Flags().StringSliceVar(&terminateInstanceIDs, "instance-ids", nil, "Comma-separated instance IDs")
	terminateCmd.Flags().StringVar(&terminateEvent, "event", "", "Invocation event JSON file, or - for stdin")
}

func runTerminate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	req, err := buildRequest(cmd.InOrStdin(), terminateEvent, terminateInstanceID, terminateInstanceIDs)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	result := a.handler.Handle(ctx, req)
	if err := printResult(cmd.OutOrStdout(), result); err != nil {
		return err
	}

	if !result.Succeeded() {
		return errNoneTerminated
	}
	return nil
}

// buildRequest reads the event (if any) and layers the flag values on top.
func buildRequest(stdin io.Reader, eventPath, id string, ids []string) (instance.Request, error) {
	var req instance.Request

	if eventPath != "" {
		payload, err := readEvent(stdin, eventPath)
		if err != nil {
			return req, err
		}
		if req, err = terminator.DecodeRequest(payload); err != nil {
			return req, err
		}
	}

	if id != "" {
		req.InstanceID = id
	}
	req.InstanceIDs = append(req.InstanceIDs, ids...)
	return req, nil
}

func readEvent(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read event from stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read event file: %w", err)
	}
	return data, nil
}

func printResult(w io.Writer, result *terminator.Result) error {
	out := struct {
		StatusCode int `json:"statusCode"`
		Body       any `json:"body"`
	}{result.StatusCode, result.Body}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}
