// Package syscallreply parses the F-packet reply GDB sends back after the
// server has round-tripped a semihosted syscall request to it.
package syscallreply

import (
	"strconv"
	"strings"
)

// Reply is the parsed form of "F<retcode>[,<errno>][;C]".
type Reply struct {
	Retcode int64
	Errno   int64
	HasErrno bool
	CtrlC   bool
	Valid   bool
}

// Parse decodes the body of an F-reply packet. data includes the leading
// 'F'. An unparsable reply yields Valid == false.
func Parse(data string) Reply {
	if len(data) == 0 || data[0] != 'F' {
		return Reply{}
	}
	body := data[1:]

	ctrlC := false
	if idx := strings.Index(body, ";"); idx >= 0 {
		if body[idx+1:] == "C" {
			ctrlC = true
		}
		body = body[:idx]
	}

	var retcodeStr, errnoStr string
	hasErrno := false
	if idx := strings.Index(body, ","); idx >= 0 {
		retcodeStr = body[:idx]
		errnoStr = body[idx+1:]
		hasErrno = true
	} else {
		retcodeStr = body
	}

	if retcodeStr == "" {
		return Reply{}
	}

	retcode, err := strconv.ParseInt(retcodeStr, 16, 64)
	if err != nil {
		return Reply{}
	}

	var errno int64
	if hasErrno {
		errno, err = strconv.ParseInt(errnoStr, 16, 64)
		if err != nil {
			return Reply{}
		}
	}

	return Reply{
		Retcode:  retcode,
		Errno:    errno,
		HasErrno: hasErrno,
		CtrlC:    ctrlC,
		Valid:    true,
	}
}
