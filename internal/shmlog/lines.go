package shmlog

import (
	"bytes"
	"errors"
	"fmt"
)

// minLineMax leaves room for one text byte plus the newline and NUL.
const minLineMax = 3

var (
	ErrLineMax    = errors.New("line max too small")
	ErrReassembly = errors.New("line reassembly left bytes unconsumed")
)

// Line is one reassembled line handed to a sink.
type Line struct {
	// Bytes ends in exactly one newline. It aliases the reassembler's
	// scratch buffer, which also holds a NUL right after it, and is only
	// valid for the duration of the emit callback.
	Bytes []byte
	// Synthetic is set when no newline was found within the length budget
	// and one was appended.
	Synthetic bool
}

// Reassembler turns drained chunks into bounded lines. Lines are not
// stitched across calls: a line split between two drains comes out as two
// lines.
type Reassembler struct {
	scratch []byte
}

// NewReassembler allocates a scratch buffer of lineMax bytes.
func NewReassembler(lineMax int) (*Reassembler, error) {
	if lineMax < minLineMax {
		return nil, fmt.Errorf("%w: %d < %d", ErrLineMax, lineMax, minLineMax)
	}
	return &Reassembler{scratch: make([]byte, lineMax)}, nil
}

// LineMax is the scratch size, the upper bound for an emitted line
// including its terminators.
func (a *Reassembler) LineMax() int { return len(a.scratch) }

// Split consumes the whole chunk, calling emit once per line in order, and
// returns how many lines were emitted.
func (a *Reassembler) Split(chunk []byte, emit func(Line)) (int, error) {
	if len(chunk) == 0 {
		return 0, nil
	}

	budget := len(a.scratch) - 2
	text := chunk
	remaining := len(chunk)
	count := 0

	for text != nil && remaining > 0 {
		scan := remaining
		if scan > budget {
			scan = budget
		}

		var (
			size      int
			synthetic bool
		)
		if i := bytes.IndexByte(text[:scan], '\n'); i >= 0 {
			size = i + 1
			copy(a.scratch, text[:size])
			a.scratch[size] = 0
		} else {
			size = scan
			synthetic = true
			copy(a.scratch, text[:size])
			a.scratch[size] = '\n'
			a.scratch[size+1] = 0
		}

		line := Line{Bytes: a.scratch[:size], Synthetic: synthetic}
		if synthetic {
			line.Bytes = a.scratch[:size+1]
		}
		emit(line)
		count++

		remaining -= size
		text = text[size:]
	}

	if text == nil || remaining != 0 {
		return count, fmt.Errorf("%w: %d bytes left", ErrReassembly, remaining)
	}
	return count, nil
}

// SplitLines is the eager form of Split: it returns copies of every line
// of chunk, newline included.
func SplitLines(chunk []byte, lineMax int) ([][]byte, error) {
	a, err := NewReassembler(lineMax)
	if err != nil {
		return nil, err
	}
	var lines [][]byte
	_, err = a.Split(chunk, func(l Line) {
		lines = append(lines, bytes.Clone(l.Bytes))
	})
	return lines, err
}
