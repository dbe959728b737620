// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package driver

import "errors"

// ErrCannotPresent means that the driver and/or device do not
// support presentation.
var ErrCannotPresent = errors.New("presentation not supported")

// ErrSwapchain represents an error related to a specific
// swapchain.
// This error usually indicates that changes to the window or
// compositor made the swapchain unusable.
var ErrSwapchain = errors.New("swapchain-related error")

// ErrNoBackbuffer means that all available backbuffers
// were acquired.
// Backbuffers are released during presentation.
var ErrNoBackbuffer = errors.New("all backbuffers in use")

// Swapchain is the interface that defines a n-buffered
// swapchain for presentation.
// Window and surface creation are external to this
// package; a Swapchain is obtained from platform glue not
// defined here and consumed only through this interface.
// Acquire/present are driven through Queue so that they
// can be ordered against other submissions by package
// submit.
type Swapchain interface {
	Destroyer

	// Views returns the list of image views that
	// comprises the swapchain.
	// This value remains unchanged as long as the
	// swapchain's Destroy or Recreate methods are
	// not called.
	Views() []ImageView

	// AcquireNext returns the index of the next writable
	// image view, signaling sem (which may be nil) once
	// the image is ready to be written.
	AcquireNext(sem Semaphore) (int, error)

	// Recreate recreates the swapchain.
	// It is meant to be called in response to a
	// ErrSwapchain error.
	Recreate() error

	// Format returns the image views' PixelFmt.
	Format() PixelFmt
}
