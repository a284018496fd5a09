// Package web embeds the field widget's page, fragments and script.
package web

import "embed"

// FS holds templates/ and static/.
//
//go:embed templates static
var FS embed.FS

// Template patterns for templates.New.
var Templates = []string{"templates/*.html", "templates/fragments/*.html"}
