package score

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"unicode/utf8"
)

var (
	ErrFileNotFound = errors.New("file not found")
	ErrInvalidJSON  = errors.New("invalid JSON")
)

// LoadFile reads a submission from a JSON file. The top-level object is used
// as-is: keys are not renamed or filtered, and numbers stay json.Number so
// they serialize back exactly as written.
func LoadFile(path string) (Data, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodes a single JSON object into Data. Input must be valid UTF-8;
// encoding/json would otherwise substitute U+FFFD and alter the payload.
func Parse(raw []byte) (Data, error) {
	if !utf8.Valid(raw) {
		return nil, fmt.Errorf("%w: file is not valid UTF-8", ErrInvalidJSON)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var data Data
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if data == nil {
		return nil, fmt.Errorf("%w: top-level value must be an object", ErrInvalidJSON)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("%w: unexpected data after top-level object", ErrInvalidJSON)
	}
	return data, nil
}
