package gatypes

import (
	"fmt"
	"strings"
)

// RowKey returns a content-equality key for row, used wherever the core
// needs to recognize duplicate individuals: the fitness evaluator's
// within-generation cache and a driver's tying-best-rows solution set.
func RowKey[T Gene](row []T) string {
	var sb strings.Builder
	for _, v := range row {
		fmt.Fprintf(&sb, "%v|", v)
	}
	return sb.String()
}
