// Package cookie manages the signed client-id cookie that binds a browser
// to its client runtime on the API server.
package cookie
