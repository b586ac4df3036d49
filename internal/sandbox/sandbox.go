// Package sandbox applies the derived pledge/unveil promises to the
// current process. Three tiers exist (§4.4): a native-kernel tier for
// OpenBSD and Cosmopolitan targets, a polyfill tier for Linux built from
// seccomp-BPF and Landlock, and a no-op stub for everything else. The
// build-tagged file compiled for the current target supplies apply and
// currentTier; this file only sequences the call and logs the outcome.
package sandbox

import (
	"fmt"

	"hull/internal/logging"
	"hull/internal/manifest"
)

// Tier identifies which sandbox strategy is active on the current build
// target.
type Tier string

const (
	TierKernel   Tier = "kernel"
	TierPolyfill Tier = "polyfill"
	TierStub     Tier = "stub"
)

// Apply applies promises to the current process in the strict order §4.4
// requires: unveil every fs.read entry, then every fs.write entry, then
// the DB file, then the binary path, then seal unveil, then pledge. It is
// irreversible — once pledge has been called, there is no "undo".
//
// An empty Promises value (the absent-manifest case) is a deliberate no-op:
// nothing was declared, so nothing is restricted beyond what the stub tier
// already leaves to the capability layer.
func Apply(promises manifest.Promises) (Tier, error) {
	if len(promises.PledgeTokens) == 0 && len(promises.UnveilPaths) == 0 {
		logging.SandboxInfo("sandbox.apply: absent manifest, skipping (tier=%s)", currentTier)
		return currentTier, nil
	}

	logging.SandboxInfo("sandbox.apply: tier=%s tokens=%v paths=%d", currentTier, promises.PledgeTokens, len(promises.UnveilPaths))
	if err := apply(promises); err != nil {
		return currentTier, fmt.Errorf("sandbox: applying on tier %s: %w", currentTier, err)
	}
	return currentTier, nil
}
