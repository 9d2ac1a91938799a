package local

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// splitRows cuts a staged JSON file into rows the way a TYPE=JSON copy does:
// the file is a stream of concatenated JSON values and each value is one row
// (outer arrays are not stripped). A value that fails to decode counts as one
// bad row; reading resumes at the next line that can start a top-level value,
// so interior lines of a broken document never become rows of their own.
func splitRows(body []byte) (rows [][]byte, bad int, firstErr string) {
	pos := 0
	for pos < len(body) {
		dec := json.NewDecoder(bytes.NewReader(body[pos:]))
		dec.UseNumber()
		var (
			start int
			err   error
		)
		for dec.More() {
			start = int(dec.InputOffset())
			var v json.RawMessage
			if err = dec.Decode(&v); err != nil {
				break
			}
			rows = append(rows, v)
		}
		if err == nil {
			// More stops at end of input or at a stray closing bracket.
			start = int(dec.InputOffset())
			rest := bytes.TrimSpace(body[pos+start:])
			if len(rest) == 0 {
				break
			}
			err = fmt.Errorf("invalid character %q looking for beginning of value", rest[0])
		}

		at := pos + start
		bad++
		if firstErr == "" {
			firstErr = fmt.Sprintf("line %d: %v", bytes.Count(body[:at], []byte("\n"))+1, err)
		}
		pos = resync(body, at)
	}
	return rows, bad, firstErr
}

// resync returns the offset of the first line after from that can begin a new
// top-level value: unindented, non-blank and not a closing bracket or
// separator. It returns len(body) when there is none.
func resync(body []byte, from int) int {
	i := from
	for {
		nl := bytes.IndexByte(body[i:], '\n')
		if nl < 0 {
			return len(body)
		}
		i += nl + 1
		if i < len(body) && startsValue(body[i]) {
			return i
		}
	}
}

func startsValue(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '}', ']', ',', ':':
		return false
	}
	return true
}
