// Package daemon implements `docgen watch`: it rebuilds the documentation
// when the sources change or a schedule fires, one build at a time.
package daemon
