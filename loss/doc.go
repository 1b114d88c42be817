// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package loss provides the bootstrap loss layer.
//
// # Overview
//
// Bootstrap loss trains a classifier on labels that may be wrong. At every
// position the cross-entropy target is a blend of the given label and the
// model's own prediction:
//
//	c_k  = beta*[k == label] + (1-beta)*t_k
//	loss = -sum_k c_k * log(p_k)
//
// with p = softmax(logits) along the class axis. In hard mode t is the
// one-hot arg-max of p; in soft mode t = p. Beta = 1 is plain softmax
// cross-entropy.
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/bootloss/loss"
//	    "github.com/born-ml/bootloss/tensor"
//	)
//
//	func main() {
//	    cfg := loss.DefaultConfig()
//	    cfg.HardMode = true
//	    cfg.Beta = 0.8
//
//	    criterion, err := loss.New[float32](cfg, nil)
//	    if err != nil {
//	        panic(err)
//	    }
//
//	    logits := tensor.New(tensor.Shape{2, 3}, []float32{2, 1, 0, 0, 1, 2})
//	    labels := tensor.New(tensor.Shape{2}, []float32{0, 0})
//
//	    value, err := criterion.Loss(logits, labels)
//	    grad, err := criterion.Gradient(1) // d(loss)/d(logits)
//	}
//
// # Lifecycle
//
// Inside a host framework the layer is driven through SetUp, Reshape,
// Forward and Backward (see Layer). Loss and Gradient wrap that sequence for
// standalone use.
//
// # Registry
//
// The softmax and arg-max sub-computations are looked up by name in a
// Registry passed to New. NewRegistry returns one with the defaults; callers
// may register their own implementations under the same names.
package loss
