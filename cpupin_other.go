// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build !linux

package vcore

// pinToCore is a no-op outside linux: CPU affinity is not portable, and
// Config.WithCPUPinning is documented as linux-only.
func pinToCore(core CoreID) error { return nil }
