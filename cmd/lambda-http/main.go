package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=arm64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-http

import (
	"context"
	"net/http"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"

	"portfolio-api/internal/bootstrap"
	"portfolio-api/internal/shared/config"
	"portfolio-api/internal/shared/telemetry"
)

type proxyFunc func(context.Context, events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error)

// newHandler builds the router once per execution environment. A failed
// build is reported on every invocation instead of crashing the runtime.
func newHandler(build func() (*gin.Engine, error)) proxyFunc {
	var (
		once      sync.Once
		initErr   error
		ginLambda *ginadapter.GinLambdaV2
	)
	return func(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
		once.Do(func() {
			router, err := build()
			if err != nil {
				initErr = err
				return
			}
			ginLambda = ginadapter.NewV2(router)
		})
		if initErr != nil {
			telemetry.Error("lambda bootstrap failed", map[string]any{"error": initErr.Error()})
			return errorResponse("bootstrap failed"), nil
		}
		return ginLambda.ProxyWithContext(ctx, req)
	}
}

func errorResponse(msg string) events.APIGatewayV2HTTPResponse {
	return events.APIGatewayV2HTTPResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error":"` + msg + `"}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

func buildRouter() (*gin.Engine, error) {
	app, err := bootstrap.Build(config.Load())
	if err != nil {
		return nil, err
	}
	return app.Router, nil
}

func main() {
	lambda.Start(newHandler(buildRouter))
}
