// Package observability builds the structured zap logger shared by every
// component of the CMS API.
//
// Request-scoped fields (request id, method, path, status) are attached by
// the access log middleware; components log through the *zap.Logger they
// receive at construction.
package observability
