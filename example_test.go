// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package infq_test

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/petenewcomb/infq-go"
)

// "Hello world" example that submits a job before the queue starts and reads
// its output as it is produced.
func Example_hello() {
	ctx := context.Background()
	q := infq.New[string](infq.WithMaxConcurrency(1))

	stream, err := q.Submit(func(ctx context.Context, h *infq.TrackingHandle[string]) {
		for _, token := range strings.Fields("Hello world!") {
			if err := h.Yield(token); err != nil {
				return // nobody is listening
			}
		}
	})
	if err != nil {
		fmt.Println("Error:", err)
		return
	}

	runErr := make(chan error, 1)
	go func() { runErr <- q.Run(ctx) }()

	tokens, err := stream.Collect(ctx)
	if err != nil {
		fmt.Println("Error:", err)
	}
	fmt.Println(strings.Join(tokens, " "))

	q.Shutdown()
	if err := <-runErr; err != nil {
		fmt.Println("Error:", err)
	}

	// Output:
	// Hello world!
}

// Example showing how a consumer that stops early lets a long-running
// producer notice and stop.
func Example_cancel() {
	ctx := context.Background()
	q := infq.New[int]()

	stopped := make(chan bool)
	stream, _ := q.Submit(func(ctx context.Context, h *infq.TrackingHandle[int]) {
		for i := 0; !h.IsCancelled(); i++ {
			_ = h.Yield(i)
		}
		stopped <- true
	})

	runErr := make(chan error, 1)
	go func() { runErr <- q.Run(ctx) }()

	for n, err := range stream.All(ctx) {
		if err != nil || n == 3 {
			break
		}
		fmt.Println(n)
	}
	fmt.Println("producer stopped:", <-stopped)

	q.Shutdown()
	<-runErr

	// Output:
	// 0
	// 1
	// 2
	// producer stopped: true
}

// Example showing how a registry cancels every job of a session at once.
func Example_registry() {
	ctx := context.Background()
	q := infq.New[string]()
	var session infq.Registry

	var streams []*infq.Stream[string]
	for range 2 {
		stream, _ := q.Submit(func(ctx context.Context, h *infq.TrackingHandle[string]) {
			_ = session.WithHold(h, func() error {
				<-ctx.Done()
				return nil
			})
		})
		streams = append(streams, stream)
	}

	runErr := make(chan error, 1)
	go func() { runErr <- q.Run(ctx) }()
	for session.Len() < 2 {
		runtime.Gosched()
	}

	fmt.Println("cancelled:", session.CancelAll())
	for _, stream := range streams {
		_, err := stream.Next(ctx)
		fmt.Println(err)
	}

	q.Shutdown()
	<-runErr

	// Output:
	// cancelled: 2
	// cancelled
	// cancelled
}
