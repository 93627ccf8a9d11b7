package conn

import (
	"fmt"
	"strings"
)

// Id is what a board reports when identified, e.g. soyuu-dcatc/nano0/0.
type Id struct {
	Type     string
	Variant  string
	Instance string
}

func (i Id) String() string {
	return fmt.Sprintf("%s/%s-%s", i.Type, i.Variant, i.Instance)
}

func parseId(id string) Id {
	ss := strings.SplitN(id, "/", 3)
	for len(ss) < 3 {
		ss = append(ss, "")
	}
	return Id{
		Type:     ss[0],
		Variant:  ss[1],
		Instance: ss[2],
	}
}
