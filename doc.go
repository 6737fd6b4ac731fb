// Command reluplex's core is organized as a set of small packages, leaves
// first: internal/ratio (exact rational arithmetic), ast (the propositional
// AST and theory atom vocabulary), tseitin (CNF encoding), cnf (the DPLL SAT
// core), simplex (bound-aware linear feasibility), reluplex (the ReLUplex
// rectifier extension), and driver (the DPLL(T) outer loop, which wires the
// other core packages together). cmd/reluplex is a CLI front end outside the
// core, built on package driver; no core package imports it.
package reluplex
