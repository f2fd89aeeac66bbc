// Package function runs the router as a Netlify (AWS Lambda) function.
package function

import (
	"context"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
)

// Handler is the signature lambda.Start expects for API Gateway style events,
// which is what Netlify delivers to Go functions.
type Handler func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error)

// New adapts h so each invocation is served as one HTTP request.
func New(h http.Handler) Handler {
	return httpadapter.New(h).ProxyWithContext
}
