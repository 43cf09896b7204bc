// Package api exposes the recommendation engine over HTTP. Every
// response carries debug headers describing how it was served: which
// cache tier answered, whether the durable store was reachable, and
// the elapsed time.
package api
