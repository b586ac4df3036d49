//go:build openbsd

package sandbox

import (
	"strings"

	"golang.org/x/sys/unix"

	"hull/internal/logging"
	"hull/internal/manifest"
)

const currentTier = TierKernel

// apply invokes the kernel's own pledge(2)/unveil(2) directly, in the
// strict order §4.4 specifies. unveil(NULL, NULL) seals the unveil list
// before pledge restricts the syscall surface — once sealed and pledged,
// neither call can be widened again for the life of the process.
func apply(promises manifest.Promises) error {
	for _, up := range promises.UnveilPaths {
		perms := unveilPerms(up.Mode)
		if err := unix.Unveil(up.Path, perms); err != nil {
			return err
		}
		logging.SandboxInfo("unveil: path=%s perms=%s", up.Path, perms)
	}

	if err := unix.UnveilBlock(); err != nil {
		return err
	}
	logging.SandboxInfo("unveil: sealed")

	tokens := strings.Join(promises.PledgeTokens, " ")
	if err := unix.PledgePromises(tokens); err != nil {
		return err
	}
	logging.SandboxInfo("pledge: tokens=%q", tokens)
	return nil
}

func unveilPerms(mode manifest.UnveilMode) string {
	switch mode {
	case manifest.UnveilReadWriteCreate:
		return "rwc"
	default:
		return "r"
	}
}
