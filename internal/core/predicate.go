package core

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// maxExitCode is the exclusive upper bound of the exit-code universe the
// predicate grammar operates over. POSIX exit codes are a single byte, so
// codes are always in [0, 256).
const maxExitCode = 256

var (
	reIncRange = regexp.MustCompile(`^(\d+)\s*-\s*(\d+)$`)
	reCmp      = regexp.MustCompile(`^(<=|>=|<|>)?\s*(\d+)$`)
)

// ExitPredicate is a half-open interval [Lo, Hi) over the exit-code universe
// 0..256. It is the acceptance set configured per Exec (spec §4.2).
type ExitPredicate struct {
	Lo int
	Hi int
}

// DefaultExitPredicate accepts exactly exit code 0.
func DefaultExitPredicate() ExitPredicate {
	return ExitPredicate{Lo: 0, Hi: 1}
}

// Test reports whether ec is within the predicate's acceptance set. It is
// total: every integer in [0,256) yields a well-defined answer.
func (p ExitPredicate) Test(ec int) bool {
	return ec >= p.Lo && ec < p.Hi
}

func (p ExitPredicate) String() string {
	if p.Hi-p.Lo == 1 {
		return strconv.Itoa(p.Lo)
	}
	return fmt.Sprintf("[%d,%d)", p.Lo, p.Hi)
}

// ParseExitPredicate parses the exit-code predicate grammar (spec §4.2):
//
//	"N"         exactly N
//	"A - B"     inclusive range [A,B]; an empty range is an error
//	"<N"        [0,N)
//	"<=N"       [0,N]
//	">N"        (N,256)
//	">=N"       [N,256)
func ParseExitPredicate(s string) (ExitPredicate, error) {
	x := strings.TrimSpace(s)

	if m := reIncRange.FindStringSubmatch(x); m != nil {
		a, _ := strconv.Atoi(m[1])
		b, _ := strconv.Atoi(m[2])
		p := ExitPredicate{Lo: a, Hi: b + 1}
		if p.Hi <= p.Lo {
			return ExitPredicate{}, fmt.Errorf("invalid exit-code range %q: empty range", s)
		}
		return clamp(p), nil
	}

	if m := reCmp.FindStringSubmatch(x); m != nil {
		op := m[1]
		if op == "" {
			op = "=="
		}
		n, _ := strconv.Atoi(m[2])

		var p ExitPredicate
		switch op {
		case "==":
			p = ExitPredicate{Lo: n, Hi: n + 1}
		case "<":
			p = ExitPredicate{Lo: 0, Hi: n}
		case "<=":
			p = ExitPredicate{Lo: 0, Hi: n + 1}
		case ">":
			p = ExitPredicate{Lo: n + 1, Hi: maxExitCode}
		case ">=":
			p = ExitPredicate{Lo: n, Hi: maxExitCode}
		default:
			return ExitPredicate{}, fmt.Errorf("invalid exit-code predicate %q", s)
		}

		if p.Hi <= p.Lo {
			return ExitPredicate{}, fmt.Errorf("invalid exit-code predicate %q: empty range", s)
		}
		return clamp(p), nil
	}

	return ExitPredicate{}, fmt.Errorf("invalid exit-code predicate %q", s)
}

func clamp(p ExitPredicate) ExitPredicate {
	if p.Lo < 0 {
		p.Lo = 0
	}
	if p.Hi > maxExitCode {
		p.Hi = maxExitCode
	}
	return p
}
