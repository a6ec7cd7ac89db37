// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build race

package vcore

// RaceEnabled is true when the race detector is active. Used by tests to
// skip concurrent mailbox-shard stress tests that trigger false positives:
// the shard's acquire-release handoff is correct but not expressed through
// primitives the race detector tracks.
const RaceEnabled = true
