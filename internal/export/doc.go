// Package export writes conversations out as Markdown or HTML.
package export
