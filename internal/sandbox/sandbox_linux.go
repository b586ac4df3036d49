//go:build linux

package sandbox

import (
	"fmt"
	"unsafe"

	"golang.org/x/net/bpf"
	"golang.org/x/sys/unix"

	"hull/internal/logging"
	"hull/internal/manifest"
)

const currentTier = TierPolyfill

// pledgeSyscalls maps each pledge token to the Linux syscall numbers it
// authorizes. This is necessarily an approximation — OpenBSD's pledge
// tokens don't have a 1:1 Linux equivalent — but it is the same shape of
// approximation the polyfill is allowed to make: a superset of the
// syscalls a token's operations need, never a subset.
var pledgeSyscalls = map[string][]int{
	"stdio": {unix.SYS_READ, unix.SYS_WRITE, unix.SYS_CLOSE, unix.SYS_EXIT, unix.SYS_EXIT_GROUP,
		unix.SYS_FUTEX, unix.SYS_MMAP, unix.SYS_MUNMAP, unix.SYS_BRK, unix.SYS_RT_SIGACTION,
		unix.SYS_RT_SIGPROCMASK, unix.SYS_GETRANDOM, unix.SYS_CLOCK_GETTIME, unix.SYS_NANOSLEEP},
	"rpath": {unix.SYS_OPENAT, unix.SYS_STAT, unix.SYS_FSTAT, unix.SYS_LSTAT, unix.SYS_READLINK,
		unix.SYS_GETDENTS64, unix.SYS_ACCESS},
	"wpath": {unix.SYS_OPENAT, unix.SYS_FTRUNCATE, unix.SYS_FSYNC, unix.SYS_FCHMOD},
	"cpath": {unix.SYS_MKDIRAT, unix.SYS_UNLINKAT, unix.SYS_RENAMEAT},
	"flock": {unix.SYS_FLOCK},
	"inet":  {unix.SYS_SOCKET, unix.SYS_CONNECT, unix.SYS_SETSOCKOPT, unix.SYS_GETSOCKOPT},
	"dns":   {unix.SYS_SENDTO, unix.SYS_RECVFROM},
}

// apply assembles a seccomp-BPF allowlist filter from the pledge tokens,
// installs the Landlock ruleset restricting filesystem access to the
// unveiled paths, and only then installs the seccomp filter — Landlock
// needs a handful of syscalls (the ruleset and ABI syscalls themselves)
// that the final filter must still permit, so it goes first.
func apply(promises manifest.Promises) error {
	if err := applyLandlock(promises.UnveilPaths); err != nil {
		logging.SandboxWarn("landlock: %v (continuing with seccomp only)", err)
	}
	return applySeccomp(promises.PledgeTokens)
}

// applySeccomp builds and installs a seccomp-BPF program that allows only
// the syscalls implied by tokens (plus PR_SET_NO_NEW_PRIVS bookkeeping) and
// kills the process on anything else — matching the strict-kill semantics
// §4.4 asks for, not EPERM.
func applySeccomp(tokens []string) error {
	allowed := map[int]struct{}{}
	for _, tok := range tokens {
		for _, nr := range pledgeSyscalls[tok] {
			allowed[nr] = struct{}{}
		}
	}

	prog, err := assembleFilter(allowed)
	if err != nil {
		return fmt.Errorf("assembling seccomp filter: %w", err)
	}

	if err := unix.Prctl(unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0); err != nil {
		return fmt.Errorf("PR_SET_NO_NEW_PRIVS: %w", err)
	}

	sockFprog := unix.SockFprog{
		Len:    uint16(len(prog)),
		Filter: (*unix.SockFilter)(unsafe.Pointer(&prog[0])),
	}
	if err := unix.Prctl(unix.PR_SET_SECCOMP, unix.SECCOMP_MODE_FILTER, uintptr(unsafe.Pointer(&sockFprog)), 0, 0); err != nil {
		return fmt.Errorf("PR_SET_SECCOMP: %w", err)
	}

	logging.SandboxInfo("seccomp: installed filter with %d allowed syscalls", len(allowed))
	return nil
}

// assembleFilter compiles an allowlist of syscall numbers into a BPF
// program using the classic cBPF instruction set via golang.org/x/net/bpf:
// load the syscall number, compare against each allowed value, return
// ALLOW on match, fall through to KILL.
func assembleFilter(allowed map[int]struct{}) ([]unix.SockFilter, error) {
	var insns []bpf.Instruction
	insns = append(insns, bpf.LoadAbsolute{Off: 0, Size: 4}) // seccomp_data.nr

	i := 0
	n := len(allowed)
	for nr := range allowed {
		i++
		remaining := n - i
		insns = append(insns, bpf.JumpIf{
			Cond:      bpf.JumpEqual,
			Val:       uint32(nr),
			SkipTrue:  uint8(remaining + 1),
			SkipFalse: 0,
		})
	}
	insns = append(insns, bpf.RetConstant{Val: 0}) // SECCOMP_RET_KILL_PROCESS == 0
	for range allowed {
		insns = append(insns, bpf.RetConstant{Val: 0x7fff0000}) // SECCOMP_RET_ALLOW
	}

	raw, err := bpf.Assemble(insns)
	if err != nil {
		return nil, err
	}

	filter := make([]unix.SockFilter, len(raw))
	for i, r := range raw {
		filter[i] = unix.SockFilter{Code: r.Op, Jt: r.Jt, Jf: r.Jf, K: r.K}
	}
	return filter, nil
}

// Landlock syscall numbers (x86_64/arm64 generic ABI). x/sys/unix does not
// expose typed wrappers for these yet, so the raw syscall numbers are used
// directly via unix.Syscall.
const (
	sysLandlockCreateRuleset = 444
	sysLandlockAddRule       = 445
	sysLandlockRestrictSelf  = 446

	landlockRuleTypePathBeneath = 1

	landlockAccessFSExecute  = 1 << 0
	landlockAccessFSReadFile = 1 << 2
	landlockAccessFSReadDir  = 1 << 3
	landlockAccessFSWriteFile = 1 << 1
	landlockAccessFSMakeDir  = 1 << 6
	landlockAccessFSRemoveDir = 1 << 8
	landlockAccessFSRemoveFile = 1 << 9
)

type landlockRulesetAttr struct {
	HandledAccessFS uint64
}

type landlockPathBeneathAttr struct {
	AllowedAccess uint64
	ParentFD      int32
	_             [4]byte // padding to match the kernel struct's alignment
}

// applyLandlock restricts filesystem access to exactly the unveiled paths
// using the Landlock LSM, the closest Linux analogue to OpenBSD's unveil.
// It is best-effort: an old kernel without Landlock support leaves seccomp
// as the sole enforcement layer, which is still strictly more restrictive
// than the stub tier.
func applyLandlock(paths []manifest.UnveilPath) error {
	attr := landlockRulesetAttr{
		HandledAccessFS: landlockAccessFSExecute | landlockAccessFSReadFile | landlockAccessFSReadDir |
			landlockAccessFSWriteFile | landlockAccessFSMakeDir | landlockAccessFSRemoveDir | landlockAccessFSRemoveFile,
	}
	rulesetFD, _, errno := unix.Syscall(sysLandlockCreateRuleset, uintptr(unsafe.Pointer(&attr)), unsafe.Sizeof(attr), 0)
	if errno != 0 {
		return fmt.Errorf("landlock_create_ruleset: %w", errno)
	}
	defer unix.Close(int(rulesetFD))

	for _, p := range paths {
		fd, err := unix.Open(p.Path, unix.O_PATH|unix.O_CLOEXEC, 0)
		if err != nil {
			logging.SandboxWarn("landlock: skipping unopenable path %s: %v", p.Path, err)
			continue
		}

		access := uint64(landlockAccessFSReadFile | landlockAccessFSReadDir | landlockAccessFSExecute)
		if p.Mode == manifest.UnveilReadWriteCreate {
			access |= landlockAccessFSWriteFile | landlockAccessFSMakeDir | landlockAccessFSRemoveDir | landlockAccessFSRemoveFile
		}
		ruleAttr := landlockPathBeneathAttr{AllowedAccess: access, ParentFD: int32(fd)}

		_, _, errno := unix.Syscall6(sysLandlockAddRule, rulesetFD, landlockRuleTypePathBeneath,
			uintptr(unsafe.Pointer(&ruleAttr)), 0, 0, 0)
		unix.Close(fd)
		if errno != 0 {
			return fmt.Errorf("landlock_add_rule for %s: %w", p.Path, errno)
		}
	}

	if err := unix.Prctl(unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0); err != nil {
		return fmt.Errorf("PR_SET_NO_NEW_PRIVS: %w", err)
	}
	if _, _, errno := unix.Syscall(sysLandlockRestrictSelf, rulesetFD, 0, 0); errno != 0 {
		return fmt.Errorf("landlock_restrict_self: %w", errno)
	}
	logging.SandboxInfo("landlock: restricted self to %d paths", len(paths))
	return nil
}
