// Copyright (c) 2023-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package botadapter

import (
	"context"
)

// NextFunc continues the pipeline with the next middleware, or the bot callback once
// the chain is exhausted.
type NextFunc func(ctx context.Context) error

// Middleware participates in every turn. Not calling next short-circuits the rest of the
// pipeline, including the bot callback.
type Middleware interface {
	OnTurn(ctx context.Context, tc *TurnContext, next NextFunc) error
}

// MiddlewareFunc adapts an ordinary function to the Middleware interface.
type MiddlewareFunc func(ctx context.Context, tc *TurnContext, next NextFunc) error

func (f MiddlewareFunc) OnTurn(ctx context.Context, tc *TurnContext, next NextFunc) error {
	return f(ctx, tc, next)
}

// MiddlewareSet is an ordered collection of middleware. The first middleware added is the
// outermost one.
type MiddlewareSet struct {
	middleware []Middleware
}

func NewMiddlewareSet(middleware ...Middleware) *MiddlewareSet {
	set := &MiddlewareSet{}
	set.Use(middleware...)
	return set
}

// Use appends middleware to the set, skipping nil entries.
func (s *MiddlewareSet) Use(middleware ...Middleware) *MiddlewareSet {
	for _, m := range middleware {
		if m != nil {
			s.middleware = append(s.middleware, m)
		}
	}
	return s
}

func (s *MiddlewareSet) Len() int {
	return len(s.middleware)
}

// OnTurn lets a set be nested inside another pipeline.
func (s *MiddlewareSet) OnTurn(ctx context.Context, tc *TurnContext, next NextFunc) error {
	return s.run(ctx, tc, 0, func(ctx context.Context) error {
		if next == nil {
			return nil
		}
		return next(ctx)
	})
}

// ReceiveActivityWithStatus runs the turn through every middleware in order and finally
// through callback. A nil callback is allowed; the pipeline then only runs middleware.
func (s *MiddlewareSet) ReceiveActivityWithStatus(ctx context.Context, tc *TurnContext, callback BotCallback) error {
	return s.run(ctx, tc, 0, func(ctx context.Context) error {
		if callback == nil {
			return nil
		}
		return callback(ctx, tc)
	})
}

func (s *MiddlewareSet) run(ctx context.Context, tc *TurnContext, index int, last NextFunc) error {
	if index >= len(s.middleware) {
		return last(ctx)
	}

	return s.middleware[index].OnTurn(ctx, tc, func(ctx context.Context) error {
		return s.run(ctx, tc, index+1, last)
	})
}
