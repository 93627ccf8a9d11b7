package conn

import (
	"fmt"
	"strconv"
	"strings"
)

// parseLevels parses the body of a sensor report such as A1B0C1T838942.
// Letters map to their level; T is followed by a monotonic time in µs.
func parseLevels(line string) (values map[byte]bool, monotonic int64, err error) {
	values = map[byte]bool{}
	line = strings.TrimSpace(line)
	for i := 0; i < len(line); i++ {
		switch {
		case line[i] == 'T':
			j := strings.IndexFunc(line[i+1:], func(r rune) bool { return r >= 'A' && r <= 'Z' })
			if j == -1 {
				j = len(line) - i - 1
			}
			monotonic, err = strconv.ParseInt(line[i+1:i+1+j], 10, 64)
			if err != nil {
				return nil, 0, fmt.Errorf("parse: T: %w", err)
			}
			i += j
		case line[i] >= 'A' && line[i] <= 'Z':
			if i+1 >= len(line) {
				return nil, 0, fmt.Errorf("parse: %c: no level", line[i])
			}
			switch line[i+1] {
			case '0':
				values[line[i]] = false
			case '1':
				values[line[i]] = true
			default:
				return nil, 0, fmt.Errorf("parse: %c: level %q", line[i], line[i+1])
			}
			i++
		default:
			return nil, 0, fmt.Errorf("parse: unexpected %q at %d", line[i], i)
		}
	}
	return values, monotonic, nil
}

func parseMilliamps(line string) (int, error) {
	mA, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil {
		return 0, fmt.Errorf("parse: M: %w", err)
	}
	return mA, nil
}
