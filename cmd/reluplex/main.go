// Command reluplex is a thin CLI front end over package driver: it parses
// the §6 atom-expression grammar, runs the DPLL(T) solver, and reports the
// result in the conventional SAT/UNSAT/UNKNOWN shape with matching exit
// codes. It contains no solving logic of its own; it is never imported by
// the core packages.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sort"

	"github.com/cespare-student/reluplex/driver"
	"github.com/cespare-student/reluplex/internal/ratio"
)

// Exit codes per spec §6.
const (
	exitSAT       = 0
	exitUNSAT     = 10
	exitUNKNOWN   = 20
	exitMalformed = 2
)

func main() {
	log.SetFlags(0)
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, `reluplex: a propositional + linear-arithmetic + ReLU decision procedure.

Usage:

  reluplex [input.formula]

reluplex reads a single formula in the atom-expression grammar:

  formula := atom | 'not' formula | formula 'and' formula
           | formula 'or' formula | '(' formula ')'
  atom     := 'ineq' '(' terms ',' number ')' | 'relu' '(' var ',' var ')'
  terms    := (number ',' var) { ',' number ',' var }

It prints SAT (with a witness assignment), UNSAT, or UNKNOWN (with a reason),
and exits 0, 10, or 20 respectively; malformed input exits 2.

If no input file is given, reluplex reads from standard input.
`)
	}
	flag.Parse()

	var r io.Reader = os.Stdin
	if flag.NArg() >= 1 {
		f, err := os.Open(flag.Arg(0))
		if err != nil {
			log.Fatal(err)
		}
		defer f.Close()
		r = f
	}

	src, err := io.ReadAll(r)
	if err != nil {
		log.Fatalln("Error reading input:", err)
	}

	f, err := ParseFormula(string(src))
	if err != nil {
		fmt.Fprintln(os.Stderr, "malformed input:", err)
		os.Exit(exitMalformed)
	}

	res := driver.Solve(f)
	switch res.Status {
	case driver.SAT:
		fmt.Println("SAT")
		printAssignment(res.Assignment)
		os.Exit(exitSAT)
	case driver.UNSAT:
		fmt.Println("UNSAT")
		os.Exit(exitUNSAT)
	default:
		fmt.Println("UNKNOWN")
		fmt.Fprintln(os.Stderr, res.Reason)
		os.Exit(exitUNKNOWN)
	}
}

func printAssignment(assignment map[string]ratio.Ratio) {
	names := make([]string, 0, len(assignment))
	for name := range assignment {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("%s = %s\n", name, assignment[name])
	}
}
