// Package requestid correlates a client request with the backend calls made
// on its behalf.
//
// Middleware assigns every incoming request an X-Request-ID. Transport
// copies it onto outgoing requests to the auth provider and the backend
// functions, and LoggerExtractor adds it to log records:
//
//	log := logger.New(logger.WithContextExtractors(requestid.LoggerExtractor()))
//	httpClient := &http.Client{Transport: requestid.Transport(nil)}
package requestid
