// Package render formats analysis results for the terminal and for files.
//
// JSON output is indented with two spaces. Text output is a short coloured
// summary per source; colours are disabled automatically when the output is
// not a terminal (see github.com/fatih/color).
package render
