// cmd/avlsetbench/main.go
//
// avlsetbench - script-driven worker harness for the concurrent ordered
// int-set.
//
// Usage:
//
//	avlsetbench -f script.txt [-n workers] [-variant coarse|optimistic|kcas]
//
// The script's first line is an integer N; each of the following N lines
// is "insert <int>", "delete <int>", or "search <int>". The harness
// splits the script into -n contiguous chunks and runs each chunk
// against a shared set concurrently in its own goroutine.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"avlset/pkg/setapi"

	_ "avlset/pkg/coarse"
	_ "avlset/pkg/lockfree"
	_ "avlset/pkg/optimistic"
)

type opKind int

const (
	opInsert opKind = iota
	opDelete
	opSearch
)

type operation struct {
	kind opKind
	key  int32
}

func main() {
	scriptPath := flag.String("f", "", "path to operation script")
	workers := flag.Int("n", runtime.GOMAXPROCS(0), "number of worker goroutines")
	variantFlag := flag.String("variant", "kcas", "synchronization scheme: coarse|optimistic|kcas")
	flag.Parse()

	if *scriptPath == "" {
		fmt.Fprintln(os.Stderr, "avlsetbench: -f <script path> is required")
		os.Exit(1)
	}

	variant, err := setapi.ParseVariant(*variantFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "avlsetbench: %v\n", err)
		os.Exit(1)
	}

	f, err := os.Open(*scriptPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "avlsetbench: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	ops, err := parseScript(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "avlsetbench: %v\n", err)
		if errors.Is(err, errUnknownOp) {
			os.Exit(2)
		}
		os.Exit(1)
	}

	n := *workers
	if n < 1 {
		n = 1
	}

	set := setapi.New(variant)
	results := run(set, ops, n)

	var changed int
	for _, ok := range results {
		if ok {
			changed++
		}
	}
	fmt.Printf("avlsetbench: variant=%s workers=%d ops=%d changed=%d\n", variant, n, len(ops), changed)
}

var errUnknownOp = errors.New("unknown operation keyword")

func parseScript(r io.Reader) ([]operation, error) {
	sc := bufio.NewScanner(r)
	if !sc.Scan() {
		return nil, fmt.Errorf("empty script")
	}
	count, err := strconv.Atoi(strings.TrimSpace(sc.Text()))
	if err != nil {
		return nil, fmt.Errorf("invalid operation count %q: %w", sc.Text(), err)
	}

	ops := make([]operation, 0, count)
	for i := 0; i < count; i++ {
		if !sc.Scan() {
			return nil, fmt.Errorf("script ended after %d of %d operations", i, count)
		}
		fields := strings.Fields(sc.Text())
		if len(fields) != 2 {
			return nil, fmt.Errorf("malformed line %q: want \"<op> <int>\"", sc.Text())
		}
		key, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("invalid key in line %q: %w", sc.Text(), err)
		}
		var kind opKind
		switch fields[0] {
		case "insert":
			kind = opInsert
		case "delete":
			kind = opDelete
		case "search":
			kind = opSearch
		default:
			return nil, fmt.Errorf("%w: %q", errUnknownOp, fields[0])
		}
		ops = append(ops, operation{kind: kind, key: int32(key)})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return ops, nil
}

// run splits ops into n contiguous chunks and dispatches each to its own
// goroutine against the shared set. The returned slice holds each
// operation's boolean result (insert: newly added, delete: was present,
// search: is present), aligned to ops by index.
func run(set setapi.Set, ops []operation, n int) []bool {
	results := make([]bool, len(ops))
	if len(ops) == 0 {
		return results
	}

	chunk := (len(ops) + n - 1) / n
	var wg sync.WaitGroup
	for start := 0; start < len(ops); start += chunk {
		end := start + chunk
		if end > len(ops) {
			end = len(ops)
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				op := ops[i]
				switch op.kind {
				case opInsert:
					results[i] = set.Insert(op.key)
				case opDelete:
					results[i] = set.Remove(op.key)
				case opSearch:
					results[i] = set.Contains(op.key)
				}
			}
		}(start, end)
	}
	wg.Wait()
	return results
}
