package pipeline

import (
	"fmt"
	"os"
	"strings"

	"reviewdash/internal"
)

func ExtractRowsFromInput(inputType string, input string) ([]internal.InputRecord, error) {
	sourceType, err := resolveSourceType(inputType, input)
	if err != nil {
		return nil, err
	}
	blob, err := os.ReadFile(input)
	if err != nil {
		return nil, err
	}
	return extractRowsFromBlob(sourceType, blob)
}

// resolveSourceType validates an explicit input type, or infers one from the
// file name when inputType is empty.
func resolveSourceType(inputType, name string) (internal.SourceType, error) {
	sourceType := internal.SourceType(strings.ToLower(strings.TrimSpace(inputType)))
	if sourceType == "" {
		inferred, ok := internal.SourceTypeFromName(name)
		if !ok {
			return "", fmt.Errorf("cannot infer input type of %s", name)
		}
		return inferred, nil
	}
	switch sourceType {
	case internal.SourceXLSX, internal.SourceJSON, internal.SourceHTML, internal.SourceCSV, internal.SourceEML:
		return sourceType, nil
	}
	return "", fmt.Errorf("unsupported input type: %s", inputType)
}
