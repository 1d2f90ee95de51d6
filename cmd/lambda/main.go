package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	chiadapter "github.com/awslabs/aws-lambda-go-api-proxy/chi"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"thoughtweb/infrastructure/config"
	"thoughtweb/infrastructure/di"
	"thoughtweb/interfaces/http/rest"
)

var (
	chiLambda *chiadapter.ChiLambdaV2
	container *di.Container
)

// init builds the container and restores snapshots during cold start.
func init() {
	coldStart := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	// Background schedules do not survive between invocations.
	cfg.Domain.Connection.EnableBackgroundDiscovery = false

	// The container lives as long as the execution environment, so its
	// cleanup never runs.
	container, _, err = di.InitializeContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}
	if err := container.Start(ctx); err != nil {
		log.Fatalf("Failed to restore state: %v", err)
	}

	router, ok := rest.NewRouter(container).Setup().(*chi.Mux)
	if !ok {
		log.Fatal("Failed to cast handler to chi.Mux")
	}
	chiLambda = chiadapter.NewV2(router)

	container.Logger.Info("Lambda cold start completed", zap.Duration("duration", time.Since(coldStart)))
}

// Handler is the Lambda function handler. State changes are saved before
// the invocation returns.
func Handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	resp, err := chiLambda.ProxyWithContextV2(ctx, req)
	if err != nil {
		container.Logger.Error("Proxy failed",
			zap.String("path", req.RequestContext.HTTP.Path),
			zap.String("requestID", req.RequestContext.RequestID),
			zap.Error(err),
		)
		return resp, err
	}

	if req.RequestContext.HTTP.Method != http.MethodGet && resp.StatusCode < http.StatusBadRequest {
		if err := container.Persist(ctx); err != nil {
			container.Logger.Error("Failed to persist state", zap.Error(err))
		}
	}
	return resp, nil
}

func main() {
	lambda.Start(Handler)
}
