// Package clientip resolves the originating client address of a request
// served behind reverse proxies. The API uses it to key sign-in rate limits.
//
//	res := clientip.New(clientip.DefaultHeaders...)
//	r.Use(res.Middleware)
//	ip := clientip.FromContext(req.Context())
package clientip
