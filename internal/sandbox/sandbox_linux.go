//go:build linux

package sandbox

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// allowedSyscalls is the server's fixed minimum: everything needed for
// blocking network I/O, timer/futex waits, memory mapping, and clean
// process exit, once the listener is bound and the SQL pool is
// established. Policy.ExtraSyscalls names are looked up in this same
// table; a name missing here is not allowed.
var allowedSyscalls = map[string]int{
	"read":          unix.SYS_READ,
	"write":         unix.SYS_WRITE,
	"readv":         unix.SYS_READV,
	"writev":        unix.SYS_WRITEV,
	"accept4":       unix.SYS_ACCEPT4,
	"close":         unix.SYS_CLOSE,
	"epoll_wait":    unix.SYS_EPOLL_WAIT,
	"epoll_ctl":     unix.SYS_EPOLL_CTL,
	"epoll_create1": unix.SYS_EPOLL_CREATE1,
	"futex":         unix.SYS_FUTEX,
	"clock_gettime": unix.SYS_CLOCK_GETTIME,
	"nanosleep":     unix.SYS_NANOSLEEP,
	"mmap":          unix.SYS_MMAP,
	"munmap":        unix.SYS_MUNMAP,
	"mprotect":      unix.SYS_MPROTECT,
	"madvise":       unix.SYS_MADVISE,
	"brk":           unix.SYS_BRK,
	"rt_sigreturn":  unix.SYS_RT_SIGRETURN,
	"rt_sigaction":  unix.SYS_RT_SIGACTION,
	"rt_sigprocmask": unix.SYS_RT_SIGPROCMASK,
	"sched_yield":   unix.SYS_SCHED_YIELD,
	"getrandom":     unix.SYS_GETRANDOM,
	"sigaltstack":   unix.SYS_SIGALTSTACK,
	"exit":          unix.SYS_EXIT,
	"exit_group":    unix.SYS_EXIT_GROUP,
	"connect":       unix.SYS_CONNECT,
	"sendto":        unix.SYS_SENDTO,
	"recvfrom":      unix.SYS_RECVFROM,
	"getsockopt":    unix.SYS_GETSOCKOPT,
	"setsockopt":    unix.SYS_SETSOCKOPT,
}

// seccompDataNrOffset is the offset of the nr field of struct
// seccomp_data (linux/seccomp.h): { int nr; __u32 arch; ... }. The arch
// field is not checked by the filter.
const (
	seccompDataNrOffset = 0
)

func bpfStmtK(code uint16, k uint32) unix.SockFilter {
	return unix.SockFilter{Code: code, K: k}
}

func bpfJump(code uint16, k uint32, jt, jf uint8) unix.SockFilter {
	return unix.SockFilter{Code: code, Jt: jt, Jf: jf, K: k}
}

func buildFilter(names map[string]bool) []unix.SockFilter {
	prog := []unix.SockFilter{
		bpfStmtK(unix.BPF_LD|unix.BPF_W|unix.BPF_ABS, seccompDataNrOffset),
	}

	for name := range names {
		nr, ok := allowedSyscalls[name]
		if !ok {
			continue
		}
		// Compare the syscall number against nr; on match, skip the
		// next instruction (the unconditional kill) and return ALLOW.
		prog = append(prog,
			bpfJump(unix.BPF_JMP|unix.BPF_JEQ|unix.BPF_K, uint32(nr), 0, 1),
			bpfStmtK(unix.BPF_RET|unix.BPF_K, unix.SECCOMP_RET_ALLOW),
		)
	}

	prog = append(prog, bpfStmtK(unix.BPF_RET|unix.BPF_K, unix.SECCOMP_RET_KILL_PROCESS))
	return prog
}

func install(policy Policy) error {
	names := make(map[string]bool, len(allowedSyscalls)+len(policy.ExtraSyscalls))
	for name := range allowedSyscalls {
		names[name] = true
	}
	for _, name := range policy.ExtraSyscalls {
		names[name] = true
	}

	if err := unix.Prctl(unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0); err != nil {
		return fmt.Errorf("sandbox: PR_SET_NO_NEW_PRIVS: %w", err)
	}

	if err := dropCapabilities(); err != nil {
		return fmt.Errorf("sandbox: dropping capabilities: %w", err)
	}

	prog := buildFilter(names)
	fprog := unix.SockFprog{
		Len:    uint16(len(prog)),
		Filter: &prog[0],
	}

	if err := unix.Prctl(unix.PR_SET_SECCOMP, uintptr(unix.SECCOMP_MODE_FILTER), uintptr(unsafe.Pointer(&fprog)), 0, 0); err != nil {
		return fmt.Errorf("sandbox: installing seccomp filter: %w", err)
	}

	return nil
}

// capBoundUpperBound is a conservative upper bound on capability
// numbers across kernels this server targets; PR_CAPBSET_DROP on a
// capability the running kernel doesn't know about returns EINVAL,
// which is treated as already-dropped rather than an error.
const capBoundUpperBound = 63

// dropCapabilities drops every capability bit from the process's
// bounding set. Ambient and effective/permitted sets are already
// minimal for an unprivileged process; the bounding set is the one
// that matters for a process that never calls exec again.
func dropCapabilities() error {
	for capability := 0; capability <= capBoundUpperBound; capability++ {
		if err := unix.Prctl(unix.PR_CAPBSET_DROP, uintptr(capability), 0, 0, 0); err != nil {
			if err == unix.EINVAL {
				continue
			}
			return err
		}
	}
	return nil
}
