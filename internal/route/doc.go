// Package route turns ranked search candidates into an ordered
// multi-stop route with a fit score and step-replacement alternatives.
//
// Construction is greedy and deterministic: a seed step nearest the
// origin, then successive steps chosen by a weighted fit score among
// candidates inside a walking-distance window. When the window yields
// nothing the builder widens it a bounded number of times before
// terminating the route short and flagging it partial.
package route
