package metrics

import (
	"net/http"
	"time"
)

// NoOp records nothing.
type NoOp struct{}

func (NoOp) ObserveCheckout(string, time.Duration)            {}
func (NoOp) ObserveDial(string, error)                        {}
func (NoOp) ObserveDiscard(string, string)                    {}
func (NoOp) SetPoolState(string, int, int)                    {}
func (NoOp) ObserveCacheLookup(bool)                          {}
func (NoOp) ObserveCachePurge(int)                            {}
func (NoOp) ObserveTransaction(string, string, time.Duration) {}

// Handler answers 404, there is nothing to expose.
func (NoOp) Handler() http.Handler { return http.NotFoundHandler() }
