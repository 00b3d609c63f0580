// Package client is the HTTP transport for the assistant service.
//
// # Overview
//
// Client opens streaming chat requests and checks service health:
//
//	c := client.New("http://localhost:8000", client.WithOpenTimeout(30*time.Second))
//	body, err := c.OpenStream(ctx, "hello")
//	if err != nil {
//		var te *client.TransportError
//		errors.As(err, &te) // connection failure or non-2xx status
//	}
//	defer body.Close()
//
// # Endpoints
//
//   - POST /chat/stream with {"message": "..."}; response is text/event-stream
//   - GET /health returning service and model status
//
// Paths are configurable. The caller owns the returned body and must close
// it on every exit path; closing it early cancels the exchange.
package client
