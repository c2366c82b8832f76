// Package input reads the lines to be scored.
package input

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ReadLines reads the file at path. See Read.
func ReadLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()

	lines, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return lines, nil
}

// Read returns every line of r in order with its "\n" or "\r\n" terminator
// removed. A blank line becomes "" and a final line without a terminator is
// kept. Lines have no length limit.
func Read(r io.Reader) ([]string, error) {
	br := bufio.NewReader(r)
	lines := []string{}
	for {
		line, err := br.ReadString('\n')
		if len(line) > 0 {
			if strings.HasSuffix(line, "\n") {
				line = strings.TrimSuffix(line[:len(line)-1], "\r")
			}
			lines = append(lines, line)
		}
		if errors.Is(err, io.EOF) {
			return lines, nil
		}
		if err != nil {
			return nil, err
		}
	}
}
