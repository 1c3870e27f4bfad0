package parsers

import (
	"fmt"

	"github.com/username/revoledger/src/parsers/revolut"
)

// DefaultSource is used when an upload does not name its source.
const DefaultSource = "revolut"

func GetParser(source string) (Parser, error) {
	switch source {
	case "", DefaultSource:
		return revolut.NewParser(), nil
	default:
		return nil, fmt.Errorf("no parser available for source: %s", source)
	}
}
