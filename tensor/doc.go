// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the dense tensor type consumed by the loss layers.
//
// # Overview
//
// A Dense[T] is a contiguous row-major buffer with a Shape. Element types are
// float32 and float64 for scores and labels, and int32 for predicted class
// indices.
//
// # Basic Usage
//
//	import "github.com/born-ml/bootloss/tensor"
//
//	func main() {
//	    // Two samples, three classes.
//	    logits := tensor.New(tensor.Shape{2, 3}, []float32{2, 1, 0, 0, 1, 2})
//	    labels := tensor.New(tensor.Shape{2}, []float32{0, 2})
//	    _ = logits.At(1, 2) // 2
//	}
//
// # Axes
//
// Loss layers split a shape around a class axis into an outer extent (the
// product of the dimensions before it) and an inner extent (the product of
// the dimensions after it). For (N, C, H, W) with axis 1 that is N and H*W.
// Negative axes count from the end.
package tensor
