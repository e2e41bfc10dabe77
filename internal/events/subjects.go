package events

import (
	"fmt"

	"Mosaic/internal/core/content"
)

// SubjectAll matches every index event of every kind
const SubjectAll = "content.index.>"

// Subject is the NATS subject an index event is published on
func Subject(kind content.Kind, op content.IndexOp) string {
	return fmt.Sprintf("content.index.%s.%s", kind, op)
}
