package trace

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// headerLines is the number of numeric header lines.
const headerLines = 4

// maxLineSize bounds a single trace line.
const maxLineSize = 1 << 16

// Parse reads a trace. Input may be UTF-8 or, when it starts with a byte
// order mark, UTF-16; the BOM is stripped either way.
//
// The number of operations must match the header, and the result is
// validated with Validate.
func Parse(r io.Reader) (*Trace, error) {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	scanner := bufio.NewScanner(decoded)
	scanner.Buffer(make([]byte, 0, 4096), maxLineSize)

	t := &Trace{}
	var header [headerLines]int
	nh := 0
	numOps := 0
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if nh < headerLines {
			v, err := strconv.Atoi(line)
			if err != nil || v < 0 {
				return nil, &ParseError{Line: lineNo, Msg: fmt.Sprintf("header field %d: want non-negative integer, got %q", nh+1, line)}
			}
			header[nh] = v
			nh++
			if nh == headerLines {
				t.HeapHint, t.NumIDs, numOps, t.Weight = header[0], header[1], header[2], header[3]
				if t.NumIDs > MaxIDs {
					return nil, &ParseError{Line: lineNo, Msg: fmt.Sprintf("header declares %d block ids, max %d", t.NumIDs, MaxIDs)}
				}
				t.Ops = make([]Op, 0, min(numOps, 1<<20))
			}
			continue
		}

		op, err := parseOp(line)
		if err != nil {
			return nil, &ParseError{Line: lineNo, Msg: err.Error()}
		}
		t.Ops = append(t.Ops, op)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("trace: scanning: %w", err)
	}

	if nh < headerLines {
		return nil, &ParseError{Line: lineNo, Msg: fmt.Sprintf("truncated header: %d of %d fields", nh, headerLines)}
	}
	if len(t.Ops) != numOps {
		return nil, &ParseError{Line: lineNo, Msg: fmt.Sprintf("header declares %d ops, found %d", numOps, len(t.Ops))}
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// ParseFile parses the trace at path and names it after the file.
func ParseFile(path string) (*Trace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	t.Name = filepath.Base(path)
	return t, nil
}

func parseOp(line string) (Op, error) {
	fields := strings.Fields(line)
	if len(fields[0]) != 1 {
		return Op{}, fmt.Errorf("unknown operation %q", fields[0])
	}
	kind := OpKind(fields[0][0])

	want := 3
	switch kind {
	case OpAlloc, OpRealloc, OpWrite:
	case OpFree:
		want = 2
	default:
		return Op{}, fmt.Errorf("unknown operation %q", fields[0])
	}
	if len(fields) != want {
		return Op{}, fmt.Errorf("%v: want %d fields, got %d", kind, want, len(fields))
	}

	id, err := strconv.Atoi(fields[1])
	if err != nil || id < 0 {
		return Op{}, fmt.Errorf("%v: bad id %q", kind, fields[1])
	}
	op := Op{Kind: kind, ID: id}
	if want == 3 {
		size, err := strconv.Atoi(fields[2])
		if err != nil || size < 0 {
			return Op{}, fmt.Errorf("%v: bad size %q", kind, fields[2])
		}
		op.Size = size
	}
	return op, nil
}

// Encode writes t in the trace file format.
func (t *Trace) Encode(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%d\n%d\n%d\n%d\n", t.HeapHint, t.NumIDs, len(t.Ops), t.Weight)
	for _, op := range t.Ops {
		if op.Kind == OpFree {
			fmt.Fprintf(bw, "%v %d\n", op.Kind, op.ID)
		} else {
			fmt.Fprintf(bw, "%v %d %d\n", op.Kind, op.ID, op.Size)
		}
	}
	return bw.Flush()
}

// WriteFile encodes t to path.
func (t *Trace) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := t.Encode(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
