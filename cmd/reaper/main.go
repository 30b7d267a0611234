// Reaper - EC2 termination request handler.
// Runs as an AWS Lambda function, a one-shot CLI, or an HTTP service.
package main

import (
	"os"
)

func main() {
	// Inside the Lambda runtime the binary is started without arguments.
	if os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" && len(os.Args) == 1 {
		rootCmd.SetArgs([]string{"lambda"})
	}
	Execute()
}
