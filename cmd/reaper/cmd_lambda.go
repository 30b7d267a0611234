package main

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/yairfalse/reaper/internal/terminator"
)

var lambdaCmd = &cobra.Command{
	Use:   "lambda",
	Short: "Run as an AWS Lambda function",
	Long: `Start the Lambda runtime loop. Each event is an invocation request
({"instance_id": "...", "instance_ids": [...]}); the response carries
statusCode and a JSON-encoded body.

This is the default when AWS_LAMBDA_RUNTIME_API is set and no command
is given.`,
	RunE: runLambda,
}

func init() {
	rootCmd.AddCommand(lambdaCmd)
}

func runLambda(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}

	defer a.Close(context.Background())

	lambda.Start(lambdaHandler(a))
	return nil
}

// lambdaHandler adapts the termination handler to the Lambda signature. The
// event is decoded here so a malformed payload becomes a 400 response rather
// than an invocation error. The meter is flushed after every event since the
// runtime may freeze afterwards.
func lambdaHandler(a *app) func(context.Context, json.RawMessage) (terminator.Response, error) {
	return func(ctx context.Context, event json.RawMessage) (terminator.Response, error) {
		var result *terminator.Result
		req, err := terminator.DecodeRequest(event)
		if err != nil {
			log.Warn().Ctx(ctx).Err(err).Msg("rejecting malformed event")
			result = terminator.BadRequest(err)
		} else {
			result = a.handler.Handle(ctx, req)
		}

		resp, err := result.Encode()
		if flushErr := a.telemetry.ForceFlush(ctx); flushErr != nil {
			log.Warn().Err(flushErr).Msg("flush telemetry")
		}
		return resp, err
	}
}
