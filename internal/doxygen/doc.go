// Package doxygen runs the external doxygen documentation generator and reads
// its Doxyfile configuration.
//
// The generator is treated as an opaque tool with a two-part contract: it is
// started as `doxygen Doxyfile` inside the documentation directory, and a
// non-zero exit status means the build failed. Both launch failures and
// non-zero exits surface as CategoryTool classified errors.
package doxygen
