package cache

import (
	"fmt"
	"strings"
)

// GenerateKeyWithParams joins prefix and params with ':'. Colons inside a
// param are replaced so a hotel ID cannot collide with the key layout.
func GenerateKeyWithParams(prefix string, params ...interface{}) string {
	var b strings.Builder
	b.WriteString(prefix)
	for _, p := range params {
		b.WriteByte(':')
		b.WriteString(strings.ReplaceAll(fmt.Sprint(p), ":", "_"))
	}
	return b.String()
}
